package enums

import "fmt"

// DiscountKind is the shape of a promotional code's reduction.
type DiscountKind string

const (
	DiscountKindFixed   DiscountKind = "fixed"
	DiscountKindPercent DiscountKind = "percent"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindFixed,
	DiscountKindPercent,
}

// String implements fmt.Stringer.
func (k DiscountKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known DiscountKind.
func (k DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
