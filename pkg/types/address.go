package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// Address is a postal address stored as JSONB on customers and orders.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// Value serializes the address to JSON.
func (a *Address) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the address.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}

// MissingFields lists which parts required for a shipping label are absent.
// The country must be a 2-letter ISO code.
func (a Address) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if len(strings.TrimSpace(a.Country)) != 2 {
		missing = append(missing, "country")
	}
	return missing
}

// Complete reports whether the address can back a label purchase.
func (a Address) Complete() bool {
	return len(a.MissingFields()) == 0
}
