package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog record prices and titles are snapshotted from.
// Cart input is never trusted for price; settlement always re-reads this row.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string    `gorm:"column:title;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	WeightGrams int64     `gorm:"column:weight_grams;not null;default:0"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
