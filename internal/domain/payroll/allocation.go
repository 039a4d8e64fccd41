package payroll

import "github.com/shopspring/decimal"

// Allocate distributes the envelope across the roster in proportion to each
// employee's attendance-adjusted index. Indexed benefit points are added to
// the adjusted index before the distribution.
//
// Gross salaries are computed from the unrounded envelope/index quotient;
// Allocation.Rate is that quotient rounded to four places for reporting.
func Allocate(employees []EmployeePayrollContext, envelope PayEnvelope, indexed []Rubric) (Allocation, error) {
	if len(employees) == 0 {
		return Allocation{}, ErrEmptyRoster
	}

	adjusted := make([]decimal.Decimal, len(employees))
	total := decimal.Zero
	for i, employee := range employees {
		index, err := adjustedIndex(employee, indexed)
		if err != nil {
			return Allocation{}, err
		}
		adjusted[i] = index
		total = total.Add(index)
	}
	if !total.IsPositive() {
		return Allocation{}, &DivisionByZeroError{Field: "total index sum"}
	}

	exactRate := quotient(envelope.TotalAmount, total)
	allocation := Allocation{
		Rate:          exactRate.Round(ratePlaces),
		TotalIndexSum: total,
		Shares:        make(map[string]IndexShare, len(employees)),
	}
	for i, employee := range employees {
		if _, dup := allocation.Shares[employee.EmployeeUUID]; dup {
			return Allocation{}, configErrorf("employee %s appears twice in the roster", employee.EmployeeUUID)
		}
		allocation.Shares[employee.EmployeeUUID] = IndexShare{
			AdjustedIndex: adjusted[i],
			GrossSalary:   roundMoney(adjusted[i].Mul(exactRate)),
		}
	}
	return allocation, nil
}

func adjustedIndex(employee EmployeePayrollContext, indexed []Rubric) (decimal.Decimal, error) {
	if !employee.DaysWorked.IsPositive() {
		return decimal.Zero, &DivisionByZeroError{EmployeeUUID: employee.EmployeeUUID, Field: "days worked"}
	}
	daily := quotient(employee.BaseIndex.Add(employee.FunctionIndex), employee.DaysWorked)
	index := daily.Mul(employee.periodDays()).Round(0)

	for _, r := range indexed {
		if points, ok := employee.rubricValue(r); ok {
			index = index.Add(points)
		}
	}
	return index, nil
}
