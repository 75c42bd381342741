package domain

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places minor units represent
const MinorUnitExponent = 2

// FormatMinor renders a minor-unit amount for display, e.g. 120050 -> "1200.50".
// Arithmetic never leaves int64; this is only for payloads read by people.
func FormatMinor(amount int64) string {
	return decimal.New(amount, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
