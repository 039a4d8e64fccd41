package payroll

import (
	"slices"
	"sort"

	"github.com/shopspring/decimal"
)

// TaxContext carries the validated IPR schedule and the factor converting
// the working currency into the schedule's currency.
type TaxContext struct {
	Brackets   []TaxBracket
	Conversion decimal.Decimal
}

// ValidateBrackets returns the brackets ordered by annual start after
// checking they tile [0, ∞) without gaps or overlaps.
func ValidateBrackets(brackets []TaxBracket) ([]TaxBracket, error) {
	sorted := slices.Clone(brackets)
	slices.SortStableFunc(sorted, func(a, b TaxBracket) int {
		return a.AnnualRangeStart.Cmp(b.AnnualRangeStart)
	})

	for i, b := range sorted {
		if b.Rate.IsNegative() {
			return nil, configErrorf("tax bracket %d has a negative rate", b.ID)
		}
		if i == 0 && !b.AnnualRangeStart.IsZero() {
			return nil, configErrorf("tax bracket %d must start at 0", b.ID)
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Unbounded() {
				return nil, configErrorf("tax bracket %d follows the open-ended bracket %d", b.ID, prev.ID)
			}
			if !prev.AnnualRangeEnd.Equal(b.AnnualRangeStart) {
				return nil, configErrorf("tax brackets %d and %d are not contiguous", prev.ID, b.ID)
			}
		}
		if !b.Unbounded() && !b.AnnualRangeEnd.GreaterThan(b.AnnualRangeStart) {
			return nil, configErrorf("tax bracket %d ends before it starts", b.ID)
		}
	}
	return sorted, nil
}

// ComputeTax returns the monthly IPR for a monthly taxable base expressed in
// the working currency. Brackets must come from ValidateBrackets.
func ComputeTax(monthlyBase decimal.Decimal, tc TaxContext, children int) (decimal.Decimal, error) {
	if !tc.Conversion.IsPositive() {
		return decimal.Zero, configErrorf("tax conversion rate must be positive, got %s", tc.Conversion.String())
	}

	annualBase := monthlyBase.Mul(tc.Conversion).Mul(decimal.NewFromInt(monthsPerYear))
	idx, ok := findBracket(tc.Brackets, annualBase)
	if !ok {
		return decimal.Zero, &TaxBracketNotFoundError{AnnualBase: annualBase}
	}
	bracket := tc.Brackets[idx]

	cumulativeBelow := decimal.Zero
	if idx > 0 {
		cumulativeBelow = tc.Brackets[idx-1].AnnualCumulativeTax
	}

	annualTax := annualBase.Sub(bracket.AnnualRangeStart).Mul(bracket.Rate).Div(hundred).Add(cumulativeBelow)
	monthlyTax := quotient(quotient(annualTax, decimal.NewFromInt(monthsPerYear)), tc.Conversion)

	if children > 0 {
		reduction := monthlyTax.Mul(decimal.NewFromInt(int64(childReductionPercent * children))).Div(hundred)
		monthlyTax = monthlyTax.Sub(reduction)
	}
	if monthlyTax.IsNegative() {
		monthlyTax = decimal.Zero
	}
	return roundMoney(monthlyTax), nil
}

func findBracket(brackets []TaxBracket, annualBase decimal.Decimal) (int, bool) {
	if annualBase.IsNegative() || len(brackets) == 0 {
		return 0, false
	}
	idx := sort.Search(len(brackets), func(i int) bool {
		return brackets[i].Unbounded() || annualBase.LessThan(brackets[i].AnnualRangeEnd)
	})
	if idx == len(brackets) || annualBase.LessThan(brackets[idx].AnnualRangeStart) {
		return 0, false
	}
	return idx, true
}
