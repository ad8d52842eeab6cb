package utils

import (
	"github.com/shopspring/decimal"
)

// SetScaleRoundHalfUp rounds value to accuracy decimal places, half away
// from zero.
func SetScaleRoundHalfUp(value decimal.Decimal, accuracy int32) decimal.Decimal {
	return value.Round(accuracy)
}

// SetScaleRoundUp rounds value to accuracy decimal places, away from zero.
// Used for reservation sizing so a reservation is never short.
func SetScaleRoundUp(value decimal.Decimal, accuracy int32) decimal.Decimal {
	return value.RoundUp(accuracy)
}

// IsScaleSmallerOrEqual reports whether value carries no more than
// accuracy decimal places.
func IsScaleSmallerOrEqual(value decimal.Decimal, accuracy int32) bool {
	return value.Truncate(accuracy).Equal(value)
}
