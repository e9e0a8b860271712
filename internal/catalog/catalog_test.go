package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/pkg/models"
)

type mapCache struct {
	items   map[string]*models.Product
	deletes []string
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]*models.Product{}}
}

func (c *mapCache) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, ok := c.items[id]
	if !ok {
		return nil, errors.New("miss")
	}
	return p, nil
}

func (c *mapCache) SetProduct(ctx context.Context, p *models.Product) error {
	c.items[p.ID] = p
	return nil
}

func (c *mapCache) DeleteProduct(ctx context.Context, id string) error {
	delete(c.items, id)
	c.deletes = append(c.deletes, id)
	return nil
}

func teeInput() Input {
	return Input{Name: "Basic Tee", Category: "shirts", Price: 150000, Stock: map[string]int{"m": 2, "L": 3}}
}

func TestService_CreateProduct(t *testing.T) {
	store := memstore.NewProducts()
	audit := memstore.NewAuditLog()
	svc := NewService(store, nil, audit, zap.NewNop())

	p, err := svc.CreateProduct(context.Background(), teeInput())
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, map[models.Size]int{models.SizeM: 2, models.SizeL: 3}, p.Stock)

	stored, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basic Tee", stored.Name)
	assert.Len(t, audit.Entries(), 1)
}

func TestService_CreateProduct_validation(t *testing.T) {
	svc := NewService(memstore.NewProducts(), nil, nil, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"blank name", func(in *Input) { in.Name = " " }},
		{"zero price", func(in *Input) { in.Price = 0 }},
		{"no sizes", func(in *Input) { in.Stock = nil }},
		{"unknown size", func(in *Input) { in.Stock = map[string]int{"XXL": 1} }},
		{"negative stock", func(in *Input) { in.Stock = map[string]int{"M": -1} }},
		{"free mixed with sizes", func(in *Input) { in.Stock = map[string]int{"FREE": 1, "M": 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := teeInput()
			tt.mutate(&in)
			_, err := svc.CreateProduct(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.KindInvalidValue), "got %v", err)
		})
	}
}

func TestService_GetProduct_readsThroughCache(t *testing.T) {
	store := memstore.NewProducts(&models.Product{ID: "p1", Name: "Cap", Price: 90000, Stock: map[models.Size]int{models.SizeFree: 4}})
	cache := newMapCache()
	svc := NewService(store, cache, nil, zap.NewNop())

	p, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cap", p.Name)
	assert.Contains(t, cache.items, "p1")

	require.NoError(t, store.Delete(context.Background(), "p1"))
	cached, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cap", cached.Name)
}

func TestService_UpdateProduct_invalidatesCache(t *testing.T) {
	store := memstore.NewProducts()
	cache := newMapCache()
	svc := NewService(store, cache, nil, zap.NewNop())
	p, err := svc.CreateProduct(context.Background(), teeInput())
	require.NoError(t, err)
	_, err = svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)

	in := teeInput()
	in.Price = 120000
	updated, err := svc.UpdateProduct(context.Background(), p.ID, in)
	require.NoError(t, err)

	assert.Equal(t, int64(120000), updated.Price)
	assert.Equal(t, []string{p.ID}, cache.deletes)
	fresh, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), fresh.Price)
}

func TestService_DeleteProduct(t *testing.T) {
	store := memstore.NewProducts()
	svc := NewService(store, nil, nil, zap.NewNop())
	p, err := svc.CreateProduct(context.Background(), teeInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))

	_, err = svc.GetProduct(context.Background(), p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.DeleteProduct(context.Background(), p.ID), apperr.KindNotFound))
}

func TestService_ListProducts(t *testing.T) {
	store := memstore.NewProducts(
		&models.Product{ID: "a", Name: "Tee", Category: "shirts", Price: 100, Stock: map[models.Size]int{models.SizeM: 1}},
		&models.Product{ID: "b", Name: "Cap", Category: "hats", Price: 100, Stock: map[models.Size]int{models.SizeFree: 1}},
	)
	svc := NewService(store, nil, nil, zap.NewNop())

	list, total, err := svc.ListProducts(context.Background(), models.ProductFilter{Category: "hats"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}
