package model

import (
	"fmt"
	"math"
)

// DepositDivisor expresses the fixed 10% prepayment policy.
const DepositDivisor = 10

// UnitDepositCents returns the per-unit deposit for a booking price, both in
// minor units.  Non-integral results round half up to the nearest cent.
func UnitDepositCents(bookingPriceCents int64) int64 {
	if bookingPriceCents <= 0 {
		return 0
	}
	return (bookingPriceCents + DepositDivisor/2) / DepositDivisor
}

// DepositCents is the amount the customer prepays for quantity units.  The
// unit deposit is rounded first so the total always equals the sum of the
// stored reservation items.
func DepositCents(bookingPriceCents int64, quantity int) int64 {
	return UnitDepositCents(bookingPriceCents) * int64(quantity)
}

// FormatCents renders minor units as a decimal string with two places.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// CentsFromAmount converts a decimal amount received over the wire into
// minor units.
func CentsFromAmount(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
