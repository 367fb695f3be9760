package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
)

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Status *enums.OrderStatus
	Limit  int
	Offset int
}

// FulfillmentUpdate carries the label purchase result written back onto a
// paid order. All fields are persisted in one update.
type FulfillmentUpdate struct {
	ShipmentID     int64
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
	DeliveryStatus string
	FulfilledAt    time.Time
}

// Repository persists orders and their line snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	MarkFulfilled(ctx context.Context, orderID uuid.UUID, update FulfillmentUpdate) error
	MarkConfirmationSent(ctx context.Context, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Customer").
		Where("payment_reference = ?", reference).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPublicID(ctx context.Context, publicID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Customer").
		Where("public_id = ?", publicID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := r.db.WithContext(ctx).
		Preload("Customer").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) MarkFulfilled(ctx context.Context, orderID uuid.UUID, update FulfillmentUpdate) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":          enums.OrderStatusFulfilled,
			"shipment_id":     update.ShipmentID,
			"tracking_number": update.TrackingNumber,
			"tracking_url":    update.TrackingURL,
			"label_url":       update.LabelURL,
			"delivery_status": update.DeliveryStatus,
			"fulfilled_at":    update.FulfilledAt,
		}).Error
}

func (r *repository) MarkConfirmationSent(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("confirmation_sent", true).Error
}
