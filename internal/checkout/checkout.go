package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/models"
)

const orderCodeAttempts = 3

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByCode(ctx context.Context, code string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*models.Order, int64, error)
}

type PromoStore interface {
	promo.Finder
	IncrementUsage(ctx context.Context, codeID, userID string) error
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o *models.Order) error
}

type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Deps wires the checkout service. Audit, Publisher and Notifier may be nil.
type Deps struct {
	Orders    OrderStore
	Promos    PromoStore
	Products  cart.ProductSource
	Audit     AuditLogger
	Publisher Publisher
	Notifier  Notifier
	Logger    *zap.Logger
	Now       func() time.Time
}

// Draft is everything the shopper submits at checkout.
type Draft struct {
	UserID        string               `json:"user_id"`
	LoggedIn      bool                 `json:"logged_in"`
	CustomerName  string               `json:"customer_name"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	AddressLine   string               `json:"address_line"`
	Ward          string               `json:"ward"`
	District      string               `json:"district"`
	City          string               `json:"city"`
	Note          string               `json:"note"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Lines         []models.CartLine    `json:"lines"`
	PromoCode     string               `json:"promo_code"`
}

// Summary is the priced view of a cart.
type Summary struct {
	Subtotal int64         `json:"subtotal"`
	Discount int64         `json:"discount"`
	Total    int64         `json:"total"`
	Promo    *promo.Result `json:"promo,omitempty"`
}

type Service struct {
	orders     OrderStore
	promos     PromoStore
	evaluator  *promo.Evaluator
	reconciler *cart.Reconciler
	audit      AuditLogger
	publisher  Publisher
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:     d.Orders,
		promos:     d.Promos,
		evaluator:  promo.NewEvaluator(d.Promos, promo.WithClock(now)),
		reconciler: cart.NewReconciler(d.Products),
		audit:      d.Audit,
		publisher:  d.Publisher,
		notifier:   d.Notifier,
		logger:     d.Logger.Named("checkout"),
		now:        now,
	}
}

// Preview prices lines with an optional promo code. It never records usage,
// so it can be called any number of times.
func (s *Service) Preview(ctx context.Context, lines []models.CartLine, code string, user promo.User) (*Summary, error) {
	sum := &Summary{Subtotal: models.Subtotal(lines)}
	if strings.TrimSpace(code) != "" {
		res, err := s.evaluator.Evaluate(ctx, code, lines, user)
		if err != nil {
			return nil, err
		}
		sum.Promo = &res
		if res.Applicable {
			sum.Discount = res.DiscountAmount
		}
	}
	sum.Total = sum.Subtotal - sum.Discount
	if sum.Total < 0 {
		sum.Total = 0
	}
	return sum, nil
}

// PlaceOrder validates the draft against fresh stock and the promo-code store,
// persists the order and then records promo usage once.
func (s *Service) PlaceOrder(ctx context.Context, d Draft) (*models.Order, error) {
	d = trimDraft(d)
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, d.Lines); err != nil {
		return nil, err
	}

	user := promo.User{ID: d.UserID, LoggedIn: d.LoggedIn}
	sum, err := s.Preview(ctx, d.Lines, d.PromoCode, user)
	if err != nil {
		return nil, err
	}
	if sum.Promo != nil && !sum.Promo.Applicable {
		return nil, sum.Promo.Err()
	}

	order := &models.Order{
		ID:             uuid.NewString(),
		UserID:         d.UserID,
		CustomerName:   d.CustomerName,
		Phone:          d.Phone,
		Email:          d.Email,
		AddressLine:    d.AddressLine,
		Ward:           d.Ward,
		District:       d.District,
		City:           d.City,
		Note:           d.Note,
		Lines:          d.Lines,
		Subtotal:       sum.Subtotal,
		Discount:       sum.Discount,
		Total:          sum.Total,
		PaymentMethod:  d.PaymentMethod,
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusUnpaid,
		ShippingStatus: models.ShippingStatusPending,
	}
	if sum.Promo != nil {
		order.PromoCode = sum.Promo.Code
	}

	if err := s.insert(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("Order placed",
		zap.String("order_code", order.Code),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.Total),
		zap.String("promo_code", order.PromoCode))

	if sum.Promo != nil {
		s.commitUsage(ctx, order, sum.Promo.CodeID)
	}
	s.announce(ctx, order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, code string) (*models.Order, error) {
	return s.orders.GetByCode(ctx, code)
}

func (s *Service) ListOrders(ctx context.Context, userID string, page, pageSize int) ([]*models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.orders.ListByUser(ctx, userID, page, pageSize)
}

func (s *Service) checkStock(ctx context.Context, lines []models.CartLine) error {
	for _, line := range lines {
		adj, err := s.reconciler.SetQuantity(ctx, line, line.Quantity)
		if err != nil {
			return err
		}
		if !adj.OK {
			return apperr.Newf(apperr.KindStockExceeded,
				"only %d of %s size %s left", adj.ClampedQuantity, line.Name, line.Size)
		}
	}
	return nil
}

func (s *Service) insert(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderCodeAttempts; attempt++ {
		now := s.now()
		order.Code = NewOrderCode(now)
		order.CreatedAt = now
		order.UpdatedAt = now

		err = s.orders.Create(ctx, order)
		if !apperr.Is(err, apperr.KindConflict) {
			break
		}
	}
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		return apperr.Persistence("failed to save order", err)
	}
	return err
}

// commitUsage records the promo usage of a placed order. A failure does not
// undo the order; it is logged for manual reconciliation.
func (s *Service) commitUsage(ctx context.Context, order *models.Order, codeID string) {
	err := s.promos.IncrementUsage(ctx, codeID, order.UserID)
	if err == nil {
		return
	}

	s.logger.Error("Promo usage not recorded",
		zap.String("order_code", order.Code),
		zap.String("promo_code", order.PromoCode),
		zap.String("user_id", order.UserID),
		zap.Int64("discount", order.Discount),
		zap.Error(err))

	if s.audit != nil {
		auditErr := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			Service:  "checkout",
			Action:   models.AuditActionPromoUsageUnrecorded,
			EntityID: order.Code,
			Data: bson.M{
				"promo_code":    order.PromoCode,
				"promo_code_id": codeID,
				"user_id":       order.UserID,
				"discount":      order.Discount,
				"error":         err.Error(),
			},
		})
		if auditErr != nil {
			s.logger.Error("Failed to write reconciliation audit log", zap.String("order_code", order.Code), zap.Error(auditErr))
		}
	}
	s.notify(ctx, &models.Notification{
		Kind:    models.NotificationPromoUsageUnrecorded,
		Title:   "Promo usage needs reconciliation",
		Message: fmt.Sprintf("Order %s used %s but its usage was not recorded", order.Code, order.PromoCode),
		RefID:   order.Code,
	})
}

func (s *Service) announce(ctx context.Context, order *models.Order) {
	if s.audit != nil {
		err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			Service:  "checkout",
			Action:   models.AuditActionOrderPlaced,
			EntityID: order.Code,
			Data:     bson.M{"user_id": order.UserID, "total": order.Total, "promo_code": order.PromoCode},
		})
		if err != nil {
			s.logger.Warn("Failed to write audit log", zap.String("order_code", order.Code), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			s.logger.Warn("Failed to publish order event", zap.String("order_code", order.Code), zap.Error(err))
		}
	}
	s.notify(ctx, &models.Notification{
		Kind:    models.NotificationOrderPlaced,
		Title:   "New order " + order.Code,
		Message: fmt.Sprintf("%s ordered %d item(s), total %d", order.CustomerName, itemCount(order.Lines), order.Total),
		RefID:   order.Code,
	})
}

func (s *Service) notify(ctx context.Context, n *models.Notification) {
	if s.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to send admin notification", zap.String("kind", string(n.Kind)), zap.Error(err))
	}
}

func itemCount(lines []models.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
