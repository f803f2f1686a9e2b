package rates

import loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"

var baseRates = map[loandomain.PurposeCategory]float64{
	loandomain.CategoryStudent:           0.08,
	loandomain.CategoryMedical:           0.10,
	loandomain.CategoryEducation:         0.11,
	loandomain.CategoryHomeImprovement:   0.13,
	loandomain.CategoryDebtConsolidation: 0.15,
	loandomain.CategoryBusiness:          0.17,
	loandomain.CategoryOther:             0.20,
}

// Proportional discounts applied as a fraction of the rate itself, keyed by
// exact loan duration in days. Every other duration carries no discount.
var durationDiscounts = map[int]float64{
	7:  0.025,
	14: 0.05,
}

// Absolute reduction (2 percentage points) for verified business borrowers.
const businessVerifiedDiscount = 0.02

// BaseRate returns the interest rate for a purpose category. Unknown
// categories fall back to the "other" rate.
func BaseRate(category loandomain.PurposeCategory) float64 {
	if rate, ok := baseRates[category]; ok {
		return rate
	}
	return baseRates[loandomain.CategoryOther]
}

// FinalRate applies the duration discount first (proportional to the rate),
// then the business-verification discount (absolute). The stacking order is
// load-bearing: totals computed from the result depend on it.
func FinalRate(base float64, durationDays int, businessVerified bool, category loandomain.PurposeCategory) float64 {
	rate := base
	if discount, ok := durationDiscounts[durationDays]; ok {
		rate = rate * (1 - discount)
	}
	if category == loandomain.CategoryBusiness && businessVerified {
		rate -= businessVerifiedDiscount
	}
	if rate < 0 {
		rate = 0
	}
	return rate
}

// QuoteRate is the single-call form used by the lifecycle engine and the
// quote endpoint.
func QuoteRate(category loandomain.PurposeCategory, durationDays int, businessVerified bool) float64 {
	return FinalRate(BaseRate(category), durationDays, businessVerified, category)
}
