// Package app opens the backing stores selected by configuration and wires
// the storefront services on top of them.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/memstore"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/promo"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/repository"
)

// Stores holds one implementation of every store the services need.
type Stores struct {
	Products      catalog.Store
	ProductCache  catalog.Cache
	Promos        promo.Store
	Orders        checkout.OrderStore
	Carts         cart.Store
	Audit         promo.AuditLogger
	Notifications notify.Store
	Publisher     checkout.Publisher

	closers []func(context.Context) error
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i](ctx)
	}
}

// OpenStores connects to the stores selected by cfg.Storage.Driver.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	var (
		s   *Stores
		err error
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		s = openMemory()
	case config.StorageMongo:
		s, err = openPersistent(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Kafka.Enabled() {
		pub := events.NewPublisher(&cfg.Kafka, logger)
		s.Publisher = pub
		s.closers = append(s.closers, func(context.Context) error { return pub.Close() })
	}
	logger.Info("Stores ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled()))
	return s, nil
}

func openMemory() *Stores {
	return &Stores{
		Products:      memstore.NewProducts(),
		Promos:        memstore.NewPromos(),
		Orders:        memstore.NewOrders(),
		Carts:         memstore.NewCarts(),
		Audit:         memstore.NewAuditLog(),
		Notifications: memstore.NewNotifications(),
	}
}

func openPersistent(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	s.closers = append(s.closers, mongoRepo.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoRepo.Ping(pingCtx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	orders, err := repository.NewOrderRepository(&cfg.MySQL)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.closers = append(s.closers, func(context.Context) error { return orders.Close() })

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	s.closers = append(s.closers, func(context.Context) error { return redisRepo.Close() })
	if err := redisRepo.Ping(pingCtx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	db := mongoRepo.Database()
	s.Products = repository.NewProductRepository(db)
	s.ProductCache = redisRepo.ProductCache()
	s.Promos = repository.NewPromoCodeRepository(db, logger)
	s.Orders = orders
	s.Carts = redisRepo.Carts()
	s.Audit = mongoRepo
	s.Notifications = repository.NewNotificationRepository(db)
	return s, nil
}

// Services are the in-process storefront services.
type Services struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Service
	Promos   *promo.Service
	Hub      *notify.Hub
}

// NewServices wires the services over s. The notification actor is spawned
// on system.
func NewServices(cfg *config.Config, s *Stores, system *actor.ActorSystem, logger *zap.Logger) (*Services, error) {
	hub, err := notify.NewHub(system, s.Notifications, logger)
	if err != nil {
		return nil, err
	}

	return &Services{
		Catalog: catalog.NewService(s.Products, s.ProductCache, s.Audit, logger),
		Carts:   cart.NewService(s.Carts, s.Products, cfg.Cart.TTL, logger),
		Checkout: checkout.NewService(checkout.Deps{
			Orders:    s.Orders,
			Promos:    s.Promos,
			Products:  s.Products,
			Audit:     s.Audit,
			Publisher: s.Publisher,
			Notifier:  hub,
			Logger:    logger,
		}),
		Promos: promo.NewService(s.Promos, s.Audit, logger),
		Hub:    hub,
	}, nil
}
