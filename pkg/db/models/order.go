package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

// Order is the aggregate root written by settlement. PaymentReference is the
// provider-native reference and doubles as the idempotency key: the unique
// index turns a concurrent duplicate confirmation into a replay lookup.
type Order struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PublicID         string             `gorm:"column:public_id;not null;uniqueIndex"`
	Status           enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	CustomerID       uuid.UUID          `gorm:"column:customer_id;type:uuid;not null"`
	PaymentRail      enums.PaymentRail  `gorm:"column:payment_rail;type:text;not null"`
	PaymentReference string             `gorm:"column:payment_reference;not null;uniqueIndex:uidx_orders_payment_reference"`
	ChargeID         *string            `gorm:"column:charge_id"`
	Currency         string             `gorm:"column:currency;type:text;not null;default:'EUR'"`
	SubtotalCents    int64              `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64              `gorm:"column:shipping_cents;not null;default:0"`
	DiscountCents    int64              `gorm:"column:discount_cents;not null;default:0"`
	TotalCents       int64              `gorm:"column:total_cents;not null"`
	DiscountCode     *string            `gorm:"column:discount_code"`
	ShippingLine     *types.ShippingLine `gorm:"column:shipping_line;type:jsonb;serializer:json"`
	ServicePoint     *types.ServicePoint `gorm:"column:service_point;type:jsonb;serializer:json"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	RiskScore        *int64             `gorm:"column:risk_score"`
	RiskOutcome      *string            `gorm:"column:risk_outcome"`
	NetworkStatus    *string            `gorm:"column:network_status"`
	ShipmentID       *int64             `gorm:"column:shipment_id"`
	TrackingNumber   *string            `gorm:"column:tracking_number"`
	TrackingURL      *string            `gorm:"column:tracking_url"`
	LabelURL         *string            `gorm:"column:label_url"`
	DeliveryStatus   *string            `gorm:"column:delivery_status"`
	ConfirmationSent bool               `gorm:"column:confirmation_sent;not null;default:false"`
	Customer         *Customer          `gorm:"foreignKey:CustomerID"`
	Items            []OrderLineItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt           *time.Time         `gorm:"column:paid_at"`
	FulfilledAt      *time.Time         `gorm:"column:fulfilled_at"`
	CancelledAt      *time.Time         `gorm:"column:cancelled_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryType reads the snapshot's delivery type, defaulting to door when
// no shipping option was chosen.
func (o *Order) DeliveryType() enums.DeliveryType {
	return o.ShippingLine.DeliveryType()
}
