package cart

import (
	"context"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

// ProductSource reads products straight from the catalog store.
type ProductSource interface {
	Get(ctx context.Context, id string) (*models.Product, error)
}

// Adjustment reports whether a requested quantity fits the current stock.
// When it does not, ClampedQuantity is the stock that is left.
type Adjustment struct {
	OK              bool `json:"ok"`
	ClampedQuantity int  `json:"clamped_quantity"`
}

type Reconciler struct {
	products ProductSource
}

func NewReconciler(products ProductSource) *Reconciler {
	return &Reconciler{products: products}
}

// SetQuantity validates newQuantity for line against fresh stock. It has no
// side effects.
func (r *Reconciler) SetQuantity(ctx context.Context, line models.CartLine, newQuantity int) (Adjustment, error) {
	if newQuantity < 1 {
		return Adjustment{}, apperr.InvalidValue("quantity must be at least 1")
	}

	p, err := r.products.Get(ctx, line.ProductID)
	if err != nil {
		return Adjustment{}, err
	}
	stock, ok := p.StockFor(line.Size)
	if !ok {
		return Adjustment{}, apperr.InvalidValue("product %s is not sold in size %s", p.Name, line.Size)
	}

	if newQuantity > stock {
		return Adjustment{OK: false, ClampedQuantity: stock}, nil
	}
	return Adjustment{OK: true, ClampedQuantity: newQuantity}, nil
}
