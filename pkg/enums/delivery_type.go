package enums

import "fmt"

// DeliveryType distinguishes door delivery from pickup at a carrier service
// point (locker or relay).
type DeliveryType string

const (
	DeliveryTypeDoor         DeliveryType = "door"
	DeliveryTypeServicePoint DeliveryType = "service_point"
)

var validDeliveryTypes = []DeliveryType{
	DeliveryTypeDoor,
	DeliveryTypeServicePoint,
}

// String implements fmt.Stringer.
func (d DeliveryType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryType.
func (d DeliveryType) IsValid() bool {
	for _, candidate := range validDeliveryTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// RequiresServicePoint reports whether orders with this delivery type must
// carry a service point identifier.
func (d DeliveryType) RequiresServicePoint() bool {
	return d == DeliveryTypeServicePoint
}

// ParseDeliveryType converts raw input into a DeliveryType.
func ParseDeliveryType(value string) (DeliveryType, error) {
	for _, candidate := range validDeliveryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery type %q", value)
}
