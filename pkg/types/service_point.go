package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// ServicePoint is the pickup location snapshot captured at checkout for
// service-point deliveries.
type ServicePoint struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Value serializes the service point to JSON.
func (p *ServicePoint) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the service point.
func (p *ServicePoint) Scan(value interface{}) error {
	if value == nil {
		*p = ServicePoint{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, p)
}

// Present reports whether a usable service point identifier was captured.
func (p *ServicePoint) Present() bool {
	return p != nil && strings.TrimSpace(p.ID) != ""
}
