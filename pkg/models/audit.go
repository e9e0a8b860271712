package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	AuditActionOrderPlaced          = "order_placed"
	AuditActionPromoUsageUnrecorded = "promo_usage_unrecorded"
	AuditActionPromoCreated         = "promo_created"
	AuditActionPromoUpdated         = "promo_updated"
	AuditActionPromoDeleted         = "promo_deleted"
	AuditActionProductCreated       = "product_created"
	AuditActionProductUpdated       = "product_updated"
	AuditActionProductDeleted       = "product_deleted"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entity_id"`
	Data      bson.M    `bson:"data" json:"data"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
