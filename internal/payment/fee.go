package payment

import "math"

// ComputeFee returns the platform's application fee for a charge of amount minor units:
// round-half-up(amount * percent / 100) + flat, clamped to [0, amount].
// percent is taken to two decimals, the precision the settings table stores.
// Negative or NaN inputs count as zero.
func ComputeFee(amount int64, percent float64, flat int64) int64 {
	if amount <= 0 {
		return 0
	}
	if percent < 0 || math.IsNaN(percent) {
		percent = 0
	}
	if flat < 0 {
		flat = 0
	}
	if percent >= 100 {
		return amount
	}

	// hundredths of a percent, so amount*bp/10000 is the exact product
	bp := int64(math.Round(percent * 100))
	if bp >= 10000 {
		return amount
	}
	// split amount to keep amount*bp inside int64
	fee := (amount/10000)*bp + ((amount%10000)*bp+5000)/10000
	if flat >= amount-fee {
		return amount
	}
	return fee + flat
}
