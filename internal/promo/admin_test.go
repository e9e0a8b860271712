package promo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/pkg/models"
)

func newAdmin(t *testing.T) (*Service, *memstore.Promos, *memstore.AuditLog) {
	t.Helper()
	store := memstore.NewPromos()
	audit := memstore.NewAuditLog()
	svc := NewService(store, audit, zap.NewNop())
	svc.now = clock
	return svc, store, audit
}

func TestService_Create_normalizesAndAudits(t *testing.T) {
	svc, store, audit := newAdmin(t)

	p, err := svc.Create(context.Background(), Input{
		Code: " summer ", Kind: "PERCENTAGE", Value: 15, MaxAmount: 50000,
	})
	require.NoError(t, err)

	assert.Equal(t, "SUMMER", p.Code)
	assert.Equal(t, models.DiscountPercentage, p.Kind)
	assert.True(t, p.Active)
	assert.Equal(t, models.ScopeAll, p.Scope)
	assert.Equal(t, testNow, p.CreatedAt)

	found, err := store.FindByCode(context.Background(), "summer")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionPromoCreated, entries[0].Action)
}

func TestService_Create_duplicateCode(t *testing.T) {
	svc, _, _ := newAdmin(t)
	_, err := svc.Create(context.Background(), Input{Code: "DUP", Kind: models.DiscountFixed, Value: 1000})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{Code: "dup", Kind: models.DiscountFixed, Value: 2000})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestService_Update_keepsUsageCounters(t *testing.T) {
	svc, store, _ := newAdmin(t)
	p, err := svc.Create(context.Background(), Input{Code: "LOYAL", Kind: models.DiscountFixed, Value: 10000})
	require.NoError(t, err)
	require.NoError(t, store.IncrementUsage(context.Background(), p.ID, "u1"))

	inactive := false
	updated, err := svc.Update(context.Background(), p.ID, Input{
		Code: "LOYAL", Kind: models.DiscountFixed, Value: 20000, Active: &inactive,
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, stored.Value)
	assert.Equal(t, 1, stored.UsedCount)
	assert.Equal(t, 1, stored.UsageBy("u1"))
}

func TestService_Update_missing(t *testing.T) {
	svc, _, _ := newAdmin(t)
	_, err := svc.Update(context.Background(), "nope", Input{Code: "X", Kind: models.DiscountFixed, Value: 1})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_Delete(t *testing.T) {
	svc, store, audit := newAdmin(t)
	p, err := svc.Create(context.Background(), Input{Code: "BYE", Kind: models.DiscountFixed, Value: 1000})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), p.ID))

	_, err = store.Get(context.Background(), p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Len(t, audit.Entries(), 2)
}

func TestService_List(t *testing.T) {
	svc, _, _ := newAdmin(t)
	for _, code := range []string{"B", "A"} {
		_, err := svc.Create(context.Background(), Input{Code: code, Kind: models.DiscountFixed, Value: 1000})
		require.NoError(t, err)
	}

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Code)
}

func TestValidate(t *testing.T) {
	valid := func() *models.PromoCode {
		return &models.PromoCode{Code: "OK", Kind: models.DiscountPercentage, Value: 10, Scope: models.ScopeAll}
	}

	tests := []struct {
		name   string
		mutate func(p *models.PromoCode)
	}{
		{"blank code", func(p *models.PromoCode) { p.Code = "" }},
		{"code with space", func(p *models.PromoCode) { p.Code = "A B" }},
		{"unknown kind", func(p *models.PromoCode) { p.Kind = "bogo" }},
		{"zero value", func(p *models.PromoCode) { p.Value = 0 }},
		{"negative value", func(p *models.PromoCode) { p.Value = -5 }},
		{"percentage over 100", func(p *models.PromoCode) { p.Value = 101 }},
		{"fractional fixed amount", func(p *models.PromoCode) { p.Kind = models.DiscountFixed; p.Value = 0.4 }},
		{"fractional fixed amount above one", func(p *models.PromoCode) { p.Kind = models.DiscountFixed; p.Value = 10000.5 }},
		{"negative cap", func(p *models.PromoCode) { p.MaxAmount = -1 }},
		{"cap on fixed", func(p *models.PromoCode) { p.Kind = models.DiscountFixed; p.MaxAmount = 10 }},
		{"negative per-user limit", func(p *models.PromoCode) { p.PerUserLimit = -1 }},
		{"unknown scope", func(p *models.PromoCode) { p.Scope = "some" }},
		{"selected without products", func(p *models.PromoCode) { p.Scope = models.ScopeSelected }},
	}

	require.NoError(t, Validate(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			assert.True(t, apperr.Is(Validate(p), apperr.KindInvalidValue))
		})
	}
}

func TestApply_dedupesSelectedProducts(t *testing.T) {
	p := &models.PromoCode{}
	apply(p, Input{Code: "x", Kind: models.DiscountFixed, Value: 1, Scope: models.ScopeSelected, ProductIDs: []string{"a", " a ", "", "b"}})
	assert.Equal(t, []string{"a", "b"}, p.ProductIDs)

	apply(p, Input{Code: "x", Kind: models.DiscountFixed, Value: 1, ProductIDs: []string{"a"}})
	assert.Equal(t, models.ScopeAll, p.Scope)
	assert.Nil(t, p.ProductIDs)
}
