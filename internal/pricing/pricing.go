// Package pricing computes the price breakdown for a resolved cart. It is
// pure: no I/O, integer cents only, recomputed from scratch on every
// settlement attempt so a client-submitted total is never trusted.
package pricing

import "github.com/google/uuid"

// Line is one cart line resolved against the authoritative product record.
type Line struct {
	ProductID      uuid.UUID
	Title          string
	UnitPriceCents int64
	WeightGrams    int64
	Qty            int64
}

// TotalCents is the line's unit price times quantity.
func (l Line) TotalCents() int64 {
	return l.UnitPriceCents * l.Qty
}

// Breakdown is the immutable result of pricing a cart.
type Breakdown struct {
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.TotalCents()
	}
	return subtotal
}

// TotalWeightGrams sums per-line weight times quantity over all lines.
func TotalWeightGrams(lines []Line) int64 {
	var grams int64
	for _, line := range lines {
		grams += line.WeightGrams * line.Qty
	}
	return grams
}

// Compute derives the breakdown. The discount is capped at subtotal plus
// shipping so the total can never go negative.
func Compute(lines []Line, shippingCents, discountCents int64) Breakdown {
	subtotal := Subtotal(lines)
	if shippingCents < 0 {
		shippingCents = 0
	}
	base := subtotal + shippingCents
	if discountCents < 0 {
		discountCents = 0
	}
	if discountCents > base {
		discountCents = base
	}
	return Breakdown{
		SubtotalCents: subtotal,
		ShippingCents: shippingCents,
		DiscountCents: discountCents,
		TotalCents:    base - discountCents,
	}
}
