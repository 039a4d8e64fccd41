package payroll

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrConfiguration         = errors.New("invalid payroll configuration")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrTaxBracketNotFound    = errors.New("no tax bracket matches taxable base")
	ErrUnmappedAccount       = errors.New("rubric has no mapped account")
	ErrUnbalancedTransaction = errors.New("transaction debits and credits differ")
	ErrExchangeRateNotFound  = errors.New("exchange rate not found")
	ErrRunAlreadyCommitted   = errors.New("payroll configuration already committed")
	ErrEmptyRoster           = errors.New("payroll run has no employees")
)

type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid payroll configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// DivisionByZeroError names the employee whose attendance or period data
// would divide by zero.
type DivisionByZeroError struct {
	EmployeeUUID string
	Field        string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("employee %s: %s is zero", e.EmployeeUUID, e.Field)
}

func (e *DivisionByZeroError) Unwrap() error { return ErrDivisionByZero }

type TaxBracketNotFoundError struct {
	AnnualBase decimal.Decimal
}

func (e *TaxBracketNotFoundError) Error() string {
	return fmt.Sprintf("no tax bracket matches annual base %s", e.AnnualBase.String())
}

func (e *TaxBracketNotFoundError) Unwrap() error { return ErrTaxBracketNotFound }

type UnmappedAccountError struct {
	EmployeeUUID string
	RubricAbbr   string
	Role         string
}

func (e *UnmappedAccountError) Error() string {
	if e.RubricAbbr == "" {
		return fmt.Sprintf("employee %s: no %s account", e.EmployeeUUID, e.Role)
	}
	return fmt.Sprintf("employee %s: rubric %s has no %s account", e.EmployeeUUID, e.RubricAbbr, e.Role)
}

func (e *UnmappedAccountError) Unwrap() error { return ErrUnmappedAccount }
