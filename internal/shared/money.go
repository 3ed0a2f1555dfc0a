package shared

import "math"

// DefaultCurrency is the operating currency used when settings are absent.
const DefaultCurrency = "AED"

// DefaultVATPercent is the fallback VAT rate when no tenant setting exists.
const DefaultVATPercent = 5.0

// Round2 rounds to two decimal places. Applied only at presentation
// boundaries; intermediate sums keep full precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
