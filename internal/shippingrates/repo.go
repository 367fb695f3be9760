package shippingrates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
)

// Repository reads the admin-configured shipping options.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveOptions(ctx context.Context) ([]models.ShippingOption, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingOption, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shipping options repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveOptions(ctx context.Context) ([]models.ShippingOption, error) {
	var options []models.ShippingOption
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("position ASC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingOption, error) {
	var option models.ShippingOption
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}
