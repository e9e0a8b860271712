package promo

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

const maxPercentage = 100

// Store persists promo codes. Update never touches usage counters; those
// change only through IncrementUsage.
type Store interface {
	Finder
	Get(ctx context.Context, id string) (*models.PromoCode, error)
	List(ctx context.Context) ([]*models.PromoCode, error)
	Create(ctx context.Context, p *models.PromoCode) error
	Update(ctx context.Context, p *models.PromoCode) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, codeID, userID string) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Input is the admin-editable part of a promo code.
type Input struct {
	Code          string              `json:"code"`
	Kind          models.DiscountKind `json:"kind"`
	Value         float64             `json:"value"`
	MaxAmount     int64               `json:"max_amount"`
	Active        *bool               `json:"active"`
	ExpiresAt     *time.Time          `json:"expires_at"`
	LoginRequired bool                `json:"login_required"`
	PerUserLimit  int                 `json:"per_user_limit"`
	Scope         models.PromoScope   `json:"scope"`
	ProductIDs    []string            `json:"product_ids"`
}

// Service is the admin back-office for promo codes.
type Service struct {
	store  Store
	audit  AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, audit AuditLogger, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		audit:  audit,
		logger: logger.Named("promo-admin"),
		now:    time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.PromoCode, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*models.PromoCode, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.PromoCode, error) {
	now := s.now()
	p := &models.PromoCode{
		ID:          uuid.NewString(),
		Active:      true,
		UsageByUser: map[string]int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	apply(p, in)

	if err := Validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Promo code created", zap.String("id", p.ID), zap.String("code", p.Code))
	s.record(ctx, models.AuditActionPromoCreated, p)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*models.PromoCode, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(p, in)
	p.UpdatedAt = s.now()

	if err := Validate(p); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Promo code updated", zap.String("id", p.ID), zap.String("code", p.Code))
	s.record(ctx, models.AuditActionPromoUpdated, p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Promo code deleted", zap.String("id", id))
	s.record(ctx, models.AuditActionPromoDeleted, &models.PromoCode{ID: id})
	return nil
}

func (s *Service) record(ctx context.Context, action string, p *models.PromoCode) {
	if s.audit == nil {
		return
	}
	err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Service:  "promo-admin",
		Action:   action,
		EntityID: p.ID,
		Data:     bson.M{"code": p.Code, "kind": string(p.Kind), "value": p.Value},
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func apply(p *models.PromoCode, in Input) {
	p.Code = models.NormalizeCode(in.Code)
	p.Kind = models.DiscountKind(strings.ToLower(string(in.Kind)))
	p.Value = in.Value
	p.MaxAmount = in.MaxAmount
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.ExpiresAt = in.ExpiresAt
	p.LoginRequired = in.LoginRequired
	p.PerUserLimit = in.PerUserLimit
	p.Scope = in.Scope
	if p.Scope == "" {
		p.Scope = models.ScopeAll
	}
	p.ProductIDs = dedupe(in.ProductIDs)
	if p.Scope == models.ScopeAll {
		p.ProductIDs = nil
	}
}

// Validate checks the admin-editable fields of p.
func Validate(p *models.PromoCode) error {
	switch {
	case p.Code == "":
		return apperr.InvalidValue("code is required")
	case strings.ContainsAny(p.Code, " \t\n"):
		return apperr.InvalidValue("code must not contain whitespace")
	case !p.Kind.Valid():
		return apperr.InvalidValue("unknown discount kind %q", p.Kind)
	case p.Value <= 0:
		return apperr.InvalidValue("value must be greater than 0")
	case p.Kind == models.DiscountFixed && p.Value != math.Trunc(p.Value):
		return apperr.InvalidValue("fixed amount must be a whole currency amount")
	case p.Kind == models.DiscountPercentage && p.Value > maxPercentage:
		return apperr.InvalidValue("percentage must not exceed %d", maxPercentage)
	case p.MaxAmount < 0:
		return apperr.InvalidValue("max amount must not be negative")
	case p.Kind == models.DiscountFixed && p.MaxAmount > 0:
		return apperr.InvalidValue("max amount only applies to percentage codes")
	case p.PerUserLimit < 0:
		return apperr.InvalidValue("per-user limit must not be negative")
	case !p.Scope.Valid():
		return apperr.InvalidValue("unknown scope %q", p.Scope)
	case p.Scope == models.ScopeSelected && len(p.ProductIDs) == 0:
		return apperr.InvalidValue("selected scope needs at least one product")
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

