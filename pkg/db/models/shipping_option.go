package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
)

// ShippingOption is an admin-configured rate applicable to a bracket of
// order subtotals. Position is the admin-controlled tie breaker.
type ShippingOption struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Carrier            string             `gorm:"column:carrier;not null"`
	ShippingType       enums.DeliveryType `gorm:"column:shipping_type;type:text;not null;default:'door'"`
	Title              string             `gorm:"column:title;not null"`
	PriceCents         int64              `gorm:"column:price_cents;not null"`
	MinOrderTotalCents *int64             `gorm:"column:min_order_total_cents"`
	MaxOrderTotalCents *int64             `gorm:"column:max_order_total_cents"`
	Position           int                `gorm:"column:position;not null;default:0"`
	Active             bool               `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// MatchesSubtotal reports whether the option's bracket contains the given
// subtotal. Nil bounds are open ends.
func (o ShippingOption) MatchesSubtotal(subtotalCents int64) bool {
	if o.MinOrderTotalCents != nil && subtotalCents < *o.MinOrderTotalCents {
		return false
	}
	if o.MaxOrderTotalCents != nil && subtotalCents > *o.MaxOrderTotalCents {
		return false
	}
	return true
}
