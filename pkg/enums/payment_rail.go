package enums

import "fmt"

// PaymentRail identifies which settlement path produced an order's payment
// reference.
type PaymentRail string

const (
	PaymentRailCard   PaymentRail = "card"
	PaymentRailWallet PaymentRail = "wallet"
	PaymentRailManual PaymentRail = "manual"
)

var validPaymentRails = []PaymentRail{
	PaymentRailCard,
	PaymentRailWallet,
	PaymentRailManual,
}

// String implements fmt.Stringer.
func (r PaymentRail) String() string {
	return string(r)
}

// IsValid reports whether the value is a known PaymentRail.
func (r PaymentRail) IsValid() bool {
	for _, candidate := range validPaymentRails {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePaymentRail converts raw input into a PaymentRail.
func ParsePaymentRail(value string) (PaymentRail, error) {
	for _, candidate := range validPaymentRails {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment rail %q", value)
}
