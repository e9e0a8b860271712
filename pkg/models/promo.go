package models

import (
	"sort"
	"strings"
	"time"
)

type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

func (k DiscountKind) Valid() bool {
	return k == DiscountFixed || k == DiscountPercentage
}

type PromoScope string

const (
	ScopeAll      PromoScope = "all"
	ScopeSelected PromoScope = "selected"
)

func (s PromoScope) Valid() bool {
	return s == ScopeAll || s == ScopeSelected
}

// PromoSchemaVersion is the current stored shape of a promo code document.
const PromoSchemaVersion = 2

// NormalizeCode is the canonical form used for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromoCode is the domain view of a discount code. Per-user usage is kept as
// a mapping from user id to the number of placed orders that used the code.
type PromoCode struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Kind          DiscountKind   `json:"kind"`
	Value         float64        `json:"value"`
	MaxAmount     int64          `json:"max_amount,omitempty"`
	Active        bool           `json:"active"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	LoginRequired bool           `json:"login_required"`
	PerUserLimit  int            `json:"per_user_limit"`
	UsageByUser   map[string]int `json:"usage_by_user"`
	UsedCount     int            `json:"used_count"`
	Scope         PromoScope     `json:"scope"`
	ProductIDs    []string       `json:"product_ids,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (p *PromoCode) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

func (p *PromoCode) UsageBy(userID string) int {
	if userID == "" {
		return 0
	}
	return p.UsageByUser[userID]
}

// InScope reports whether a product is covered by the code.
func (p *PromoCode) InScope(productID string) bool {
	if p.Scope != ScopeSelected {
		return true
	}
	for _, id := range p.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// UserUsage is one entry of the stored per-user usage list.
type UserUsage struct {
	UserID string `bson:"user_id"`
	Count  int    `bson:"count"`
}

// PromoCodeRecord is the stored shape of a promo code. Besides the current
// fields it decodes the field names used by older documents so that
// Normalize can migrate them.
type PromoCodeRecord struct {
	ID            string      `bson:"_id"`
	SchemaVersion int         `bson:"schema_version"`
	Code          string      `bson:"code"`
	Kind          string      `bson:"kind,omitempty"`
	Value         float64     `bson:"value,omitempty"`
	MaxAmount     int64       `bson:"max_amount,omitempty"`
	Active        *bool       `bson:"active,omitempty"`
	ExpiresAt     *time.Time  `bson:"expires_at,omitempty"`
	LoginRequired bool        `bson:"login_required"`
	PerUserLimit  int         `bson:"per_user_limit"`
	Usage         []UserUsage `bson:"usage"`
	UsedCount     int         `bson:"used_count"`
	Scope         string      `bson:"scope,omitempty"`
	ProductIDs    []string    `bson:"product_ids,omitempty"`
	CreatedAt     time.Time   `bson:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at"`

	// schema 0/1 fields
	LegacyAmount        *float64   `bson:"amount,omitempty"`
	LegacyType          string     `bson:"type,omitempty"`
	LegacyPromoType     string     `bson:"promoType,omitempty"`
	LegacyMaxAmount     *int64     `bson:"maxAmount,omitempty"`
	LegacyIsActive      *bool      `bson:"isActive,omitempty"`
	LegacyExpiry        *time.Time `bson:"expiry,omitempty"`
	LegacyLoginRequired *bool      `bson:"isLoginRequired,omitempty"`
	LegacyUsedByUsers   []string   `bson:"usedByUsers,omitempty"`
	LegacyUsedCount     *int       `bson:"usedCount,omitempty"`
}

// Normalize migrates the record to the current schema and returns the domain
// view. Current fields always win over legacy ones.
func (r *PromoCodeRecord) Normalize() *PromoCode {
	p := &PromoCode{
		ID:            r.ID,
		Code:          NormalizeCode(r.Code),
		Kind:          parseKind(r.Kind, r.LegacyType, r.LegacyPromoType),
		Value:         r.Value,
		MaxAmount:     r.MaxAmount,
		Active:        true,
		ExpiresAt:     r.ExpiresAt,
		LoginRequired: r.LoginRequired,
		PerUserLimit:  r.PerUserLimit,
		UsageByUser:   make(map[string]int, len(r.Usage)),
		UsedCount:     r.UsedCount,
		Scope:         PromoScope(r.Scope),
		ProductIDs:    r.ProductIDs,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if p.Value == 0 && r.LegacyAmount != nil {
		p.Value = *r.LegacyAmount
	}
	if p.MaxAmount == 0 && r.LegacyMaxAmount != nil {
		p.MaxAmount = *r.LegacyMaxAmount
	}
	switch {
	case r.Active != nil:
		p.Active = *r.Active
	case r.LegacyIsActive != nil:
		p.Active = *r.LegacyIsActive
	}
	if p.ExpiresAt == nil {
		p.ExpiresAt = r.LegacyExpiry
	}
	if !p.LoginRequired && r.LegacyLoginRequired != nil {
		p.LoginRequired = *r.LegacyLoginRequired
	}

	// A legacy document can receive current-shape increments before its
	// migration is written back, so both sets of counters add up.
	for _, u := range r.Usage {
		p.UsageByUser[u.UserID] += u.Count
	}
	for _, userID := range r.LegacyUsedByUsers {
		p.UsageByUser[userID]++
	}
	if r.LegacyUsedCount != nil {
		p.UsedCount += *r.LegacyUsedCount
	} else {
		p.UsedCount += len(r.LegacyUsedByUsers)
	}

	if !p.Scope.Valid() {
		if len(p.ProductIDs) > 0 {
			p.Scope = ScopeSelected
		} else {
			p.Scope = ScopeAll
		}
	}
	return p
}

func parseKind(values ...string) DiscountKind {
	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "fixed", "amount", "flat":
			return DiscountFixed
		case "percentage", "percent", "%":
			return DiscountPercentage
		}
	}
	return ""
}

// NewPromoCodeRecord converts a domain promo code to its current stored shape.
func NewPromoCodeRecord(p *PromoCode) *PromoCodeRecord {
	active := p.Active
	r := &PromoCodeRecord{
		ID:            p.ID,
		SchemaVersion: PromoSchemaVersion,
		Code:          NormalizeCode(p.Code),
		Kind:          string(p.Kind),
		Value:         p.Value,
		MaxAmount:     p.MaxAmount,
		Active:        &active,
		ExpiresAt:     p.ExpiresAt,
		LoginRequired: p.LoginRequired,
		PerUserLimit:  p.PerUserLimit,
		Usage:         make([]UserUsage, 0, len(p.UsageByUser)),
		UsedCount:     p.UsedCount,
		Scope:         string(p.Scope),
		ProductIDs:    p.ProductIDs,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	for userID, n := range p.UsageByUser {
		r.Usage = append(r.Usage, UserUsage{UserID: userID, Count: n})
	}
	sort.Slice(r.Usage, func(i, j int) bool { return r.Usage[i].UserID < r.Usage[j].UserID })
	return r
}
