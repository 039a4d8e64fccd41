package payroll

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func roundMoney(value decimal.Decimal) decimal.Decimal {
	return value.Round(moneyPlaces)
}

func quotient(numerator, denominator decimal.Decimal) decimal.Decimal {
	return numerator.DivRound(denominator, divisionPrecision)
}

func percentOf(base, percent decimal.Decimal) decimal.Decimal {
	return roundMoney(base.Mul(percent).Div(hundred))
}

func sumAmounts(lines []RubricAmount) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// ComputeTotals aggregates breakdowns into the payroll register totals.
func ComputeTotals(breakdowns []PayrollBreakdown) Totals {
	totals := Totals{EmployeeCount: len(breakdowns)}
	for _, b := range breakdowns {
		totals.Basic = totals.Basic.Add(b.Basic)
		totals.Taxable = totals.Taxable.Add(b.BaseTaxable.Sub(b.Basic))
		totals.NonTaxable = totals.NonTaxable.Add(b.NonTaxable)
		totals.Gross = totals.Gross.Add(b.GrossSalary)
		totals.EmployeeDeductions = totals.EmployeeDeductions.Add(b.GrossSalary.Sub(b.NetSalary))
		totals.EmployerCharges = totals.EmployerCharges.Add(b.TotalEmployerCharges())
		totals.Net = totals.Net.Add(b.NetSalary)
	}
	return totals
}
