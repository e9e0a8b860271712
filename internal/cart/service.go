package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

// Store keeps serialized sessions. A missing session is reported as
// apperr.KindNotFound.
type Store interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	store      Store
	products   ProductSource
	reconciler *Reconciler
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, products ProductSource, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		products:   products,
		reconciler: NewReconciler(products),
		ttl:        ttl,
		logger:     logger.Named("cart"),
		now:        time.Now,
	}
}

// Create starts an empty session for userID (which may be empty for guests).
func (s *Service) Create(ctx context.Context, userID string) (*Session, error) {
	sess := NewSession(uuid.NewString(), userID)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session, or an empty one when it does not exist yet.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.store.Load(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return NewSession(id, ""), nil
		}
		return nil, apperr.Persistence("failed to load cart", err)
	}
	sess, err := UnmarshalSession(data)
	if err != nil {
		s.logger.Warn("Discarding unreadable cart session", zap.String("cart_id", id), zap.Error(err))
		return NewSession(id, ""), nil
	}
	return sess, nil
}

// AddItem adds quantity units of a product size, merging with an existing
// line. The merged quantity is clamped to the available stock.
func (s *Service) AddItem(ctx context.Context, id, userID, productID string, size models.Size, quantity int) (*Session, Adjustment, error) {
	if quantity < 1 {
		return nil, Adjustment{}, apperr.InvalidValue("quantity must be at least 1")
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, Adjustment{}, err
	}
	if userID != "" {
		sess.UserID = userID
	}

	line, exists := sess.Line(productID, size)
	if !exists {
		p, err := s.products.Get(ctx, productID)
		if err != nil {
			return nil, Adjustment{}, err
		}
		line = models.CartLine{ProductID: p.ID, Name: p.Name, Size: size, UnitPrice: p.Price}
	}

	adj, err := s.reconciler.SetQuantity(ctx, line, line.Quantity+quantity)
	if err != nil {
		return nil, Adjustment{}, err
	}
	if adj.ClampedQuantity == 0 {
		return nil, adj, apperr.Newf(apperr.KindStockExceeded, "%s size %s is out of stock", line.Name, size)
	}

	line.Quantity = adj.ClampedQuantity
	sess.Put(line)
	if err := s.save(ctx, sess); err != nil {
		return nil, Adjustment{}, err
	}
	return sess, adj, nil
}

// UpdateQuantity sets the quantity of an existing line, clamped to stock.
func (s *Service) UpdateQuantity(ctx context.Context, id, productID string, size models.Size, quantity int) (*Session, Adjustment, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, Adjustment{}, err
	}
	line, ok := sess.Line(productID, size)
	if !ok {
		return nil, Adjustment{}, apperr.NotFound("cart has no line for product %s size %s", productID, size)
	}

	adj, err := s.reconciler.SetQuantity(ctx, line, quantity)
	if err != nil {
		return nil, Adjustment{}, err
	}
	if adj.ClampedQuantity == 0 {
		return nil, adj, apperr.Newf(apperr.KindStockExceeded, "%s size %s is out of stock", line.Name, size)
	}

	line.Quantity = adj.ClampedQuantity
	sess.Put(line)
	if err := s.save(ctx, sess); err != nil {
		return nil, Adjustment{}, err
	}
	return sess, adj, nil
}

func (s *Service) RemoveItem(ctx context.Context, id, productID string, size models.Size) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Remove(productID, size) {
		return nil, apperr.NotFound("cart has no line for product %s size %s", productID, size)
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Clear(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Persistence("failed to clear cart", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	data, err := MarshalSession(sess)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, sess.ID, data, s.ttl); err != nil {
		return apperr.Persistence("failed to save cart", err)
	}
	return nil
}
