package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
)

// DiscountCode is an admin-managed promotional code. Codes are stored
// uppercased and deactivated rather than deleted.
type DiscountCode struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string             `gorm:"column:code;not null;uniqueIndex"`
	Kind        enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	AmountCents int64              `gorm:"column:amount_cents;not null;default:0"`
	PercentOff  int64              `gorm:"column:percent_off;not null;default:0"`
	Active      bool               `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
