package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

// OrderRepository persists orders in MySQL.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(cfg *config.MySQLConfig) (*OrderRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	// Auto migrate
	if err := db.AutoMigrate(&models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &OrderRepository{db: db}, nil
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return gormErr(r.db.WithContext(ctx).Create(o).Error, "order "+o.Code)
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&o).Error; err != nil {
		return nil, gormErr(err, "order "+code)
	}
	return &o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*models.Order, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, gormErr(err, "orders")
	}

	orders := []*models.Order{}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, gormErr(err, "orders")
	}
	return orders, total, nil
}

func (r *OrderRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *OrderRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, what+" already exists", err)
	default:
		return apperr.Persistence("mysql: "+what, err)
	}
}
