package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem is the immutable snapshot of one cart line, capturing the
// product title and unit price at order-creation time so later catalog edits
// never change historical orders.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Title          string    `gorm:"column:title;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	WeightGrams    int64     `gorm:"column:weight_grams;not null;default:0"`
	Qty            int64     `gorm:"column:qty;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalCents is the snapshot price times quantity.
func (i OrderLineItem) LineTotalCents() int64 {
	return i.UnitPriceCents * i.Qty
}
