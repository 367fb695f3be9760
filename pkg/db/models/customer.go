package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/types"
)

// Customer is keyed by lowercased email and upserted inside the same
// transaction that creates an order; it is never created independently in
// the checkout path.
type Customer struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	FirstName string         `gorm:"column:first_name;not null;default:''"`
	LastName  string         `gorm:"column:last_name;not null;default:''"`
	Phone     *string        `gorm:"column:phone"`
	Address   *types.Address `gorm:"column:address;type:jsonb;serializer:json"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
