package payroll

import "github.com/shopspring/decimal"

type BasicSalaryInput struct {
	EmployeeUUID      string
	MonthlySalary     decimal.Decimal
	PeriodWorkingDays int
	WorkingDays       decimal.Decimal
	Offdays           []Offday
	Holidays          []Holiday
}

// ComputeBasicSalary prorates a monthly salary over the days actually worked,
// adding paid offdays and holidays at their configured share of a day.
func ComputeBasicSalary(in BasicSalaryInput) (decimal.Decimal, error) {
	if in.PeriodWorkingDays <= 0 {
		return decimal.Zero, &DivisionByZeroError{EmployeeUUID: in.EmployeeUUID, Field: "working days in period"}
	}
	daily := quotient(in.MonthlySalary, decimal.NewFromInt(int64(in.PeriodWorkingDays)))

	basic := roundMoney(daily.Mul(in.WorkingDays))
	for _, offday := range in.Offdays {
		basic = basic.Add(percentOf(daily, offday.PercentPay))
	}
	for _, holiday := range in.Holidays {
		basic = basic.Add(percentOf(daily.Mul(decimal.NewFromInt(int64(holiday.Days))), holiday.Percentage))
	}
	return basic, nil
}

// basicSalaryFor builds the salary input for an employee paid outside the
// index system. Without explicit attendance the full period is paid.
func basicSalaryFor(employee EmployeePayrollContext, envelope PayEnvelope) (decimal.Decimal, error) {
	if !employee.DaysWorked.IsPositive() && len(employee.Offdays) == 0 && len(employee.Holidays) == 0 {
		return roundMoney(employee.BasicSalary), nil
	}
	return ComputeBasicSalary(BasicSalaryInput{
		EmployeeUUID:      employee.EmployeeUUID,
		MonthlySalary:     employee.BasicSalary,
		PeriodWorkingDays: envelope.WorkingDaysInPeriod,
		WorkingDays:       employee.DaysWorked,
		Offdays:           employee.Offdays,
		Holidays:          employee.Holidays,
	})
}
