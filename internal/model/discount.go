package model

import "time"

// DiscountType describes how a discount is applied to a price.
type DiscountType string

const (
	// TypeFlat subtracts a fixed amount from the price.
	TypeFlat DiscountType = "flat"
	// TypePercentage reduces the price proportionally.
	TypePercentage DiscountType = "percentage"
)

// DiscountStatus is the lifecycle state of a discount. Status updates accept
// any string; these constants cover the states the validity checks know about.
type DiscountStatus string

const (
	StatusActive   DiscountStatus = "active"
	StatusInactive DiscountStatus = "inactive"
)

// expiryGrace keeps a discount redeemable for a day past its expiration.
const expiryGrace = 24 * time.Hour

// Discount is one promotional-code definition.
type Discount struct {
	Code      string         `json:"code"`
	Type      DiscountType   `json:"type"`
	Amount    float64        `json:"amount"`
	Status    DiscountStatus `json:"status"`
	Uses      int            `json:"uses"`
	MaxUses   *int           `json:"max_uses,omitempty"`   // nil = unbounded
	StartsAt  *time.Time     `json:"starts_at,omitempty"`  // nil = no start constraint
	ExpiresAt *time.Time     `json:"expires_at,omitempty"` // nil = never expires
}

// Expired reports whether the discount's expiration date has passed by more
// than the grace window. A discount with no expiration never expires.
func (d *Discount) Expired(now time.Time) bool {
	if d.ExpiresAt == nil {
		return false
	}
	return now.Sub(*d.ExpiresAt) > expiryGrace
}

// Started reports whether the discount's start date has been reached.
// A discount with no start date is always started.
func (d *Discount) Started(now time.Time) bool {
	if d.StartsAt == nil {
		return true
	}
	return !d.StartsAt.After(now)
}

// MaxedOut reports whether the discount has hit its usage cap.
func (d *Discount) MaxedOut() bool {
	if d.MaxUses == nil {
		return false
	}
	return d.Uses >= *d.MaxUses
}

// Apply returns the price after the discount. Flat discounts subtract the
// amount, percentage discounts scale the price down. The result is not
// clamped, so a flat discount larger than the price goes negative.
func (d *Discount) Apply(basePrice float64) float64 {
	switch d.Type {
	case TypePercentage:
		return basePrice * (1 - d.Amount/100)
	default:
		return basePrice - d.Amount
	}
}

// DiscountResponse is the API representation of a stored discount.
type DiscountResponse struct {
	ID int `json:"id"`
	Discount
}

// CreateDiscountRequest is the DTO for creating a discount.
type CreateDiscountRequest struct {
	Code      string     `json:"code" validate:"required,notblank,max=255"`
	Type      string     `json:"type" validate:"required,oneof=flat percentage"`
	Amount    *float64   `json:"amount" validate:"required,gte=0"`
	Status    string     `json:"status" validate:"omitempty,notblank"`
	MaxUses   *int       `json:"max_uses" validate:"omitempty,gte=0"`
	StartsAt  *time.Time `json:"starts_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateStatusRequest is the DTO for changing a discount's status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,notblank,max=64"`
}

// ApplyDiscountRequest is the DTO for pricing a cart total against a code.
type ApplyDiscountRequest struct {
	Code      string   `json:"code" validate:"required,notblank,max=255"`
	BasePrice *float64 `json:"base_price" validate:"required"`
}

// RedeemDiscountRequest is the DTO for recording a use of a code.
type RedeemDiscountRequest struct {
	Code string `json:"code" validate:"required,notblank,max=255"`
}
