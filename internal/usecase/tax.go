package usecase

import (
	"math"

	"dealflow-billing/internal/domain/model"
)

// ComputeTax applies the GST breakdown to a subtotal in minor units.
// Intra-jurisdiction transactions split the GST rate evenly into CGST and
// SGST; inter-jurisdiction ones carry the whole rate as IGST. TDS is a
// withholding deduction tracked for reporting and never added to the
// payable total. The computation order is gross -> tax -> net.
func ComputeTax(subtotalMinor int64, gstPercent, tdsPercent int, interState bool) (model.TaxBreakdown, int64) {
	pct := func(base int64, percent float64) int64 {
		return int64(math.Round(float64(base) * percent / 100))
	}

	var tax model.TaxBreakdown
	if interState {
		tax.IGSTMinor = pct(subtotalMinor, float64(gstPercent))
	} else {
		half := float64(gstPercent) / 2
		tax.CGSTMinor = pct(subtotalMinor, half)
		tax.SGSTMinor = pct(subtotalMinor, half)
	}
	tax.TDSMinor = pct(subtotalMinor, float64(tdsPercent))

	total := subtotalMinor + tax.CGSTMinor + tax.SGSTMinor + tax.IGSTMinor
	return tax, total
}
