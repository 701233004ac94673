package models

import "math"

// Balances and prices are stored as int64 cents so arithmetic is exact.
// Wire payloads carry JSON numbers in currency units with two decimal
// places of precision.

// Cents converts a wire amount to cents, rounding to the nearest cent.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Amount converts cents back to a wire amount.
func Amount(cents int64) float64 {
	return float64(cents) / 100
}

// TimeLayout is the timestamp format used on the wire.
const TimeLayout = "2006-01-02 15:04:05"
