package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
)

// ShippingLine is the snapshot of the shipping option chosen at settlement
// time, frozen onto the order so later admin edits never change history.
type ShippingLine struct {
	OptionID     *uuid.UUID         `json:"option_id,omitempty"`
	Carrier      string             `json:"carrier"`
	ShippingType enums.DeliveryType `json:"shipping_type"`
	Title        string             `json:"title"`
	PriceCents   int64              `json:"price_cents"`
}

// Value serializes the shipping line to JSON.
func (s *ShippingLine) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan decodes JSONB into the shipping line.
func (s *ShippingLine) Scan(value interface{}) error {
	if value == nil {
		*s = ShippingLine{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, s)
}

// DeliveryType returns the snapshot's delivery type, defaulting to door.
func (s *ShippingLine) DeliveryType() enums.DeliveryType {
	if s == nil || s.ShippingType == "" {
		return enums.DeliveryTypeDoor
	}
	return s.ShippingType
}
