package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentBankTransfer
}

const (
	OrderStatusPending    = "pending"
	PaymentStatusUnpaid   = "unpaid"
	ShippingStatusPending = "not_shipped"
)

type Order struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code           string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	UserID         string         `gorm:"type:varchar(64);index" json:"user_id"`
	CustomerName   string         `gorm:"type:varchar(100);not null" json:"customer_name"`
	Phone          string         `gorm:"type:varchar(20);not null" json:"phone"`
	Email          string         `gorm:"type:varchar(100)" json:"email"`
	AddressLine    string         `gorm:"type:varchar(255);not null" json:"address_line"`
	Ward           string         `gorm:"type:varchar(100)" json:"ward"`
	District       string         `gorm:"type:varchar(100)" json:"district"`
	City           string         `gorm:"type:varchar(100);not null" json:"city"`
	Note           string         `gorm:"type:text" json:"note"`
	Items          string         `gorm:"type:text" json:"-"` // JSON string
	Lines          []CartLine     `gorm:"-" json:"lines"`
	Subtotal       int64          `gorm:"not null" json:"subtotal"`
	PromoCode      string         `gorm:"type:varchar(64)" json:"promo_code,omitempty"`
	Discount       int64          `gorm:"not null;default:0" json:"discount"`
	Total          int64          `gorm:"not null" json:"total"`
	PaymentMethod  PaymentMethod  `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status         string         `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentStatus  string         `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	ShippingStatus string         `gorm:"type:varchar(20);default:'not_shipped'" json:"shipping_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// EncodeItems freezes Lines into the Items column.
func (o *Order) EncodeItems() error {
	data, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("failed to serialize order lines: %w", err)
	}
	o.Items = string(data)
	return nil
}

// DecodeItems restores Lines from the Items column.
func (o *Order) DecodeItems() error {
	if o.Items == "" {
		o.Lines = nil
		return nil
	}
	if err := json.Unmarshal([]byte(o.Items), &o.Lines); err != nil {
		return fmt.Errorf("failed to parse order lines: %w", err)
	}
	return nil
}

func (o *Order) BeforeSave(tx *gorm.DB) error {
	return o.EncodeItems()
}

func (o *Order) AfterFind(tx *gorm.DB) error {
	return o.DecodeItems()
}
