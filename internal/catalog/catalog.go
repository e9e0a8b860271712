package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/models"
)

// Store persists product records. Missing products are reported as
// apperr.KindNotFound.
type Store interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
}

// Cache is a read-through cache for single products.
type Cache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	SetProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Input is the admin-editable part of a product.
type Input struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Price       int64          `json:"price"`
	Stock       map[string]int `json:"stock"`
	Images      []string       `json:"images"`
}

type Service struct {
	store  Store
	cache  Cache
	audit  AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

// NewService builds the catalog service. cache and audit may be nil.
func NewService(store Store, cache Cache, audit AuditLogger, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		audit:  audit,
		logger: logger.Named("catalog"),
		now:    time.Now,
	}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if s.cache != nil {
		if p, err := s.cache.GetProduct(ctx, id); err == nil {
			return p, nil
		}
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, p); err != nil {
			s.logger.Warn("Failed to cache product", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, int64, error) {
	return s.store.List(ctx, filter.Normalize())
}

func (s *Service) CreateProduct(ctx context.Context, in Input) (*models.Product, error) {
	now := s.now()
	p := &models.Product{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	s.record(ctx, models.AuditActionProductCreated, p)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in Input) (*models.Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(p, in); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("Product updated", zap.String("product_id", p.ID))
	s.record(ctx, models.AuditActionProductUpdated, p)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.logger.Info("Product deleted", zap.String("product_id", id))
	s.record(ctx, models.AuditActionProductDeleted, &models.Product{ID: id})
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteProduct(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, action string, p *models.Product) {
	if s.audit == nil {
		return
	}
	err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		Service:  "catalog",
		Action:   action,
		EntityID: p.ID,
		Data:     bson.M{"name": p.Name, "price": p.Price},
	})
	if err != nil {
		s.logger.Warn("Failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func apply(p *models.Product, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.InvalidValue("name is required")
	}
	if in.Price <= 0 {
		return apperr.InvalidValue("price must be greater than 0")
	}
	stock, err := parseStock(in.Stock)
	if err != nil {
		return err
	}

	p.Name = name
	p.Description = strings.TrimSpace(in.Description)
	p.Category = strings.TrimSpace(in.Category)
	p.Price = in.Price
	p.Stock = stock
	p.Images = in.Images
	return nil
}

func parseStock(in map[string]int) (map[models.Size]int, error) {
	if len(in) == 0 {
		return nil, apperr.InvalidValue("at least one size is required")
	}
	stock := make(map[models.Size]int, len(in))
	for label, n := range in {
		size, ok := models.ParseSize(label)
		if !ok {
			return nil, apperr.InvalidValue("unknown size %q", label)
		}
		if n < 0 {
			return nil, apperr.InvalidValue("stock for size %s must not be negative", size)
		}
		stock[size] = n
	}
	if _, free := stock[models.SizeFree]; free && len(stock) > 1 {
		return nil, apperr.InvalidValue("size %s cannot be combined with other sizes", models.SizeFree)
	}
	return stock, nil
}
