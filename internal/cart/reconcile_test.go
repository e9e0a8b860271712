package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/pkg/models"
)

func catalog() *memstore.Products {
	return memstore.NewProducts(
		&models.Product{ID: "tee", Name: "Basic Tee", Price: 150000, Stock: map[models.Size]int{models.SizeM: 0, models.SizeL: 3}},
		&models.Product{ID: "cap", Name: "Logo Cap", Price: 90000, Stock: map[models.Size]int{models.SizeFree: 10}},
	)
}

func TestReconciler_SetQuantity(t *testing.T) {
	r := NewReconciler(catalog())
	teeL := models.CartLine{ProductID: "tee", Size: models.SizeL, Quantity: 1}

	tests := []struct {
		name string
		line models.CartLine
		qty  int
		want Adjustment
	}{
		{"within stock", teeL, 2, Adjustment{OK: true, ClampedQuantity: 2}},
		{"exactly stock", teeL, 3, Adjustment{OK: true, ClampedQuantity: 3}},
		{"over stock", teeL, 5, Adjustment{OK: false, ClampedQuantity: 3}},
		{"sold out size", models.CartLine{ProductID: "tee", Size: models.SizeM}, 1, Adjustment{OK: false, ClampedQuantity: 0}},
		{"single size item", models.CartLine{ProductID: "cap", Size: models.SizeFree}, 10, Adjustment{OK: true, ClampedQuantity: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SetQuantity(context.Background(), tt.line, tt.qty)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconciler_SetQuantity_errors(t *testing.T) {
	r := NewReconciler(catalog())

	_, err := r.SetQuantity(context.Background(), models.CartLine{ProductID: "tee", Size: models.SizeL}, 0)
	assert.True(t, apperr.Is(err, apperr.KindInvalidValue))

	_, err = r.SetQuantity(context.Background(), models.CartLine{ProductID: "tee", Size: models.SizeXL}, 1)
	assert.True(t, apperr.Is(err, apperr.KindInvalidValue))

	_, err = r.SetQuantity(context.Background(), models.CartLine{ProductID: "ghost", Size: models.SizeL}, 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestReconciler_SetQuantity_readsFreshStock(t *testing.T) {
	products := catalog()
	r := NewReconciler(products)
	line := models.CartLine{ProductID: "tee", Size: models.SizeL, Quantity: 3}

	p, err := products.Get(context.Background(), "tee")
	require.NoError(t, err)
	p.Stock[models.SizeL] = 1
	require.NoError(t, products.Update(context.Background(), p))

	got, err := r.SetQuantity(context.Background(), line, 3)
	require.NoError(t, err)
	assert.Equal(t, Adjustment{OK: false, ClampedQuantity: 1}, got)
}
