package payroll

import "github.com/shopspring/decimal"

// Evaluate applies the classified rubrics to one employee. basic is the
// allocated gross in index mode, or the prorated basic salary otherwise.
// Every amount is rounded to the cent as soon as it is computed.
func Evaluate(employee EmployeePayrollContext, basic decimal.Decimal, rubrics ClassifiedRubrics, tc TaxContext) (PayrollBreakdown, error) {
	b := PayrollBreakdown{
		EmployeeUUID:      employee.EmployeeUUID,
		CostCenterID:      employee.CostCenterID,
		CreditorAccountID: employee.CreditorAccountID,
		Basic:             basic,
		BaseTaxable:       basic,
		NonTaxable:        decimal.Zero,
	}

	for _, r := range rubrics.Benefits {
		value, ok := employee.rubricValue(r)
		if !ok {
			continue
		}
		amount := benefitAmount(r, value, basic, employee)
		if amount.IsZero() {
			continue
		}
		if r.Taxable() {
			b.BaseTaxable = b.BaseTaxable.Add(amount)
		} else {
			b.NonTaxable = b.NonTaxable.Add(amount)
		}
		b.Benefits = append(b.Benefits, RubricAmount{Rubric: r, Amount: amount})
	}
	b.GrossSalary = b.BaseTaxable.Add(b.NonTaxable)

	b.IPRBase = b.BaseTaxable
	for _, r := range rubrics.EmployeeDeductions {
		if r.IsIPR {
			continue
		}
		value, ok := employee.rubricValue(r)
		if !ok {
			continue
		}
		amount := chargeAmount(r, value, b.BaseTaxable)
		if amount.IsZero() {
			continue
		}
		if r.PreTax() {
			b.IPRBase = b.IPRBase.Sub(amount)
		}
		b.EmployeeDeductions = append(b.EmployeeDeductions, RubricAmount{Rubric: r, Amount: amount})
	}

	if rubrics.IPR != nil && subjectToTax(employee, *rubrics.IPR) {
		tax, err := ComputeTax(b.IPRBase, tc, employee.NumberOfChildren)
		if err != nil {
			return PayrollBreakdown{}, err
		}
		if !tax.IsZero() {
			b.EmployeeDeductions = append(b.EmployeeDeductions, RubricAmount{Rubric: *rubrics.IPR, Amount: tax})
		}
	}

	for _, r := range rubrics.EmployerCharges {
		value, ok := employee.rubricValue(r)
		if !ok {
			continue
		}
		amount := chargeAmount(r, value, b.BaseTaxable)
		if amount.IsZero() {
			continue
		}
		b.EmployerCharges = append(b.EmployerCharges, RubricAmount{Rubric: r, Amount: amount})
	}

	b.NetSalary = b.GrossSalary.Sub(b.TotalEmployeeDeductions())
	return b, nil
}

func benefitAmount(r Rubric, value, basic decimal.Decimal, employee EmployeePayrollContext) decimal.Decimal {
	switch {
	case r.IsSeniorityBonus:
		return percentOf(basic.Mul(decimal.NewFromInt(int64(employee.YearsOfSeniority))), value)
	case r.IsFamilyAllowances:
		return roundMoney(value.Mul(decimal.NewFromInt(int64(employee.NumberOfChildren))))
	case r.IsPercent:
		return percentOf(basic, value)
	default:
		return roundMoney(value)
	}
}

func chargeAmount(r Rubric, value, base decimal.Decimal) decimal.Decimal {
	if r.IsPercent {
		return percentOf(base, value)
	}
	return roundMoney(value)
}

// subjectToTax holds unless the employee carries an explicit zero override;
// the IPR rubric's own value is not an amount.
func subjectToTax(employee EmployeePayrollContext, ipr Rubric) bool {
	override, ok := employee.RubricValues[ipr.ID]
	return !ok || !override.IsZero()
}
