package models

import "time"

type NotificationKind string

const (
	NotificationOrderPlaced          NotificationKind = "order_placed"
	NotificationPromoUsageUnrecorded NotificationKind = "promo_usage_unrecorded"
)

// Notification is an admin back-office message.
type Notification struct {
	ID        string           `bson:"_id" json:"id"`
	Kind      NotificationKind `bson:"kind" json:"kind"`
	Title     string           `bson:"title" json:"title"`
	Message   string           `bson:"message" json:"message"`
	RefID     string           `bson:"ref_id" json:"ref_id"`
	Read      bool             `bson:"read" json:"read"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}
