package payroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rubric is a configured pay component. Value is a fixed amount, or a
// percentage (3.5 means 3.5%) when IsPercent is set.
type Rubric struct {
	ID                 int             `json:"id"`
	Abbr               string          `json:"abbr"`
	Label              string          `json:"label"`
	Value              decimal.Decimal `json:"value"`
	IsPercent          bool            `json:"isPercent"`
	IsDiscount         bool            `json:"isDiscount"`
	IsTax              bool            `json:"isTax"`
	IsSocialCare       bool            `json:"isSocialCare"`
	IsEmployee         bool            `json:"isEmployee"`
	IsIPR              bool            `json:"isIpr"`
	IsSeniorityBonus   bool            `json:"isSeniorityBonus"`
	IsFamilyAllowances bool            `json:"isFamilyAllowances"`
	IsIndice           bool            `json:"isIndice"`
	DebtorAccountID    int             `json:"debtorAccountId"`
	ExpenseAccountID   int             `json:"expenseAccountId"`
}

// TaxBracket is one row of the annual IPR schedule. A zero AnnualRangeEnd
// marks the open-ended last bracket.
type TaxBracket struct {
	ID                   int             `json:"id"`
	Rate                 decimal.Decimal `json:"rate"`
	AnnualRangeStart     decimal.Decimal `json:"annualRangeStart"`
	AnnualRangeEnd       decimal.Decimal `json:"annualRangeEnd"`
	MonthlyRangeStart    decimal.Decimal `json:"monthlyRangeStart"`
	MonthlyRangeEnd      decimal.Decimal `json:"monthlyRangeEnd"`
	AnnualCumulativeTax  decimal.Decimal `json:"annualCumulativeTax"`
	MonthlyCumulativeTax decimal.Decimal `json:"monthlyCumulativeTax"`
	TaxScaleID           int             `json:"taxScaleId"`
}

func (b TaxBracket) Unbounded() bool {
	return b.AnnualRangeEnd.IsZero()
}

type TaxScale struct {
	ID         int          `json:"id"`
	CurrencyID int          `json:"currencyId"`
	Brackets   []TaxBracket `json:"brackets"`
}

type Offday struct {
	Date       time.Time       `json:"date"`
	PercentPay decimal.Decimal `json:"percentPay"`
}

type Holiday struct {
	Label      string          `json:"label"`
	Days       int             `json:"days"`
	Percentage decimal.Decimal `json:"percentage"`
}

type EmployeePayrollContext struct {
	EmployeeUUID      string          `json:"employeeUuid"`
	DisplayName       string          `json:"displayName"`
	BaseIndex         decimal.Decimal `json:"baseIndex"`
	FunctionIndex     decimal.Decimal `json:"functionIndex"`
	GradeIndex        decimal.Decimal `json:"gradeIndex"`
	DaysWorked        decimal.Decimal `json:"daysWorked"`
	AdditionalDays    decimal.Decimal `json:"additionalDays"`
	TotalDaysInPeriod decimal.Decimal `json:"totalDaysInPeriod"`
	CurrencyID        int             `json:"currencyId"`
	NumberOfChildren  int             `json:"numberOfChildren"`
	YearsOfSeniority  int             `json:"yearsOfSeniority"`
	CostCenterID      int             `json:"costCenterId"`
	CreditorAccountID int             `json:"creditorAccountId"`
	// BasicSalary is the monthly individual salary used when index
	// allocation is disabled.
	BasicSalary decimal.Decimal `json:"basicSalary"`
	Offdays     []Offday        `json:"offdays,omitempty"`
	Holidays    []Holiday       `json:"holidays,omitempty"`
	// RubricValues overrides Rubric.Value per rubric id. A zero override
	// excludes the employee from that rubric.
	RubricValues map[int]decimal.Decimal `json:"rubricValues,omitempty"`
}

// periodDays is the attendance multiplier for the adjusted index.
func (e EmployeePayrollContext) periodDays() decimal.Decimal {
	if e.TotalDaysInPeriod.IsPositive() {
		return e.TotalDaysInPeriod
	}
	return e.DaysWorked.Add(e.AdditionalDays)
}

// rubricValue resolves the value applying to this employee and whether the
// employee is subject to the rubric at all.
func (e EmployeePayrollContext) rubricValue(r Rubric) (decimal.Decimal, bool) {
	if override, ok := e.RubricValues[r.ID]; ok {
		return override, !override.IsZero()
	}
	return r.Value, !r.Value.IsZero()
}

type PayEnvelope struct {
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	WorkingDaysInPeriod int             `json:"workingDaysInPeriod"`
	CurrencyID          int             `json:"currencyId"`
}

type Period struct {
	Label    string    `json:"label"`
	DateFrom time.Time `json:"dateFrom"`
	DateTo   time.Time `json:"dateTo"`
}

type ExchangeRate struct {
	CurrencyID    int             `json:"currencyId"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effectiveDate"`
}

type RubricAccounts struct {
	DebtorAccountID  int `json:"debtorAccountId"`
	ExpenseAccountID int `json:"expenseAccountId"`
}

// AccountMap resolves ledger accounts. Rubric entries override the accounts
// configured on the rubric itself.
type AccountMap struct {
	SalaryExpenseAccountID int                    `json:"salaryExpenseAccountId"`
	Rubrics                map[int]RubricAccounts `json:"rubrics,omitempty"`
}

func (m AccountMap) For(r Rubric) RubricAccounts {
	accounts := RubricAccounts{DebtorAccountID: r.DebtorAccountID, ExpenseAccountID: r.ExpenseAccountID}
	if override, ok := m.Rubrics[r.ID]; ok {
		if override.DebtorAccountID != 0 {
			accounts.DebtorAccountID = override.DebtorAccountID
		}
		if override.ExpenseAccountID != 0 {
			accounts.ExpenseAccountID = override.ExpenseAccountID
		}
	}
	return accounts
}

type ConfigurationInput struct {
	PayrollConfigurationID int                      `json:"payrollConfigurationId"`
	Period                 Period                   `json:"period"`
	Employees              []EmployeePayrollContext `json:"employees"`
	Rubrics                []Rubric                 `json:"rubrics"`
	TaxScale               TaxScale                 `json:"taxScale"`
	Envelope               PayEnvelope              `json:"envelope"`
	Accounts               AccountMap               `json:"accounts"`
	PostingMode            PostingMode              `json:"postingMode"`
}

type RubricAmount struct {
	Rubric Rubric          `json:"rubric"`
	Amount decimal.Decimal `json:"amount"`
}

type PayrollBreakdown struct {
	EmployeeUUID       string          `json:"employeeUuid"`
	CostCenterID       int             `json:"costCenterId"`
	CreditorAccountID  int             `json:"creditorAccountId"`
	AdjustedIndex      decimal.Decimal `json:"adjustedIndex"`
	Basic              decimal.Decimal `json:"basic"`
	GrossSalary        decimal.Decimal `json:"grossSalary"`
	BaseTaxable        decimal.Decimal `json:"baseTaxable"`
	NonTaxable         decimal.Decimal `json:"nonTaxable"`
	IPRBase            decimal.Decimal `json:"iprBase"`
	Benefits           []RubricAmount  `json:"benefits"`
	EmployerCharges    []RubricAmount  `json:"employerCharges"`
	EmployeeDeductions []RubricAmount  `json:"employeeDeductions"`
	NetSalary          decimal.Decimal `json:"netSalary"`
}

// BreakdownLine is one persisted rubric amount of a payslip.
type BreakdownLine struct {
	RubricID int
	Abbr     string
	Category string
	Amount   decimal.Decimal
}

func (b PayrollBreakdown) Lines() []BreakdownLine {
	var lines []BreakdownLine
	add := func(category string, amounts []RubricAmount) {
		for _, a := range amounts {
			lines = append(lines, BreakdownLine{RubricID: a.Rubric.ID, Abbr: a.Rubric.Abbr, Category: category, Amount: a.Amount})
		}
	}
	add(LineCategoryBenefit, b.Benefits)
	add(LineCategoryEmployeeDeduction, b.EmployeeDeductions)
	add(LineCategoryEmployerCharge, b.EmployerCharges)
	return lines
}

func (b PayrollBreakdown) TotalEmployeeDeductions() decimal.Decimal {
	return sumAmounts(b.EmployeeDeductions)
}

func (b PayrollBreakdown) TotalEmployerCharges() decimal.Decimal {
	return sumAmounts(b.EmployerCharges)
}

type JournalEntry struct {
	TransactionUUID   uuid.UUID       `json:"transactionUuid"`
	TransactionTypeID int             `json:"transactionTypeId"`
	AccountID         int             `json:"accountId"`
	Debit             decimal.Decimal `json:"debit"`
	Credit            decimal.Decimal `json:"credit"`
	EntityUUID        string          `json:"entityUuid,omitempty"`
	CostCenterID      int             `json:"costCenterId,omitempty"`
	Description       string          `json:"description"`
	TransDate         time.Time       `json:"transDate"`
}

type Transaction struct {
	UUID    uuid.UUID      `json:"uuid"`
	TypeID  int            `json:"typeId"`
	Entries []JournalEntry `json:"entries"`
}

func (t Transaction) Totals() (debit, credit decimal.Decimal) {
	for _, entry := range t.Entries {
		debit = debit.Add(entry.Debit)
		credit = credit.Add(entry.Credit)
	}
	return debit, credit
}

func (t Transaction) Balanced() bool {
	debit, credit := t.Totals()
	return debit.Equal(credit)
}

// Entities lists the distinct employee uuids referenced by the lines.
func (t Transaction) Entities() []string {
	seen := map[string]bool{}
	var entities []string
	for _, entry := range t.Entries {
		if entry.EntityUUID == "" || seen[entry.EntityUUID] {
			continue
		}
		seen[entry.EntityUUID] = true
		entities = append(entities, entry.EntityUUID)
	}
	return entities
}

type IndexShare struct {
	AdjustedIndex decimal.Decimal `json:"adjustedIndex"`
	GrossSalary   decimal.Decimal `json:"grossSalary"`
}

type Allocation struct {
	// Rate is the published remuneration rate, rounded to four places.
	Rate          decimal.Decimal       `json:"rate"`
	TotalIndexSum decimal.Decimal       `json:"totalIndexSum"`
	Shares        map[string]IndexShare `json:"shares"`
}

type RunOptions struct {
	PostingMode        PostingMode
	UseIndexAllocation bool
}

type Totals struct {
	EmployeeCount      int             `json:"employeeCount"`
	Basic              decimal.Decimal `json:"basic"`
	Taxable            decimal.Decimal `json:"taxable"`
	NonTaxable         decimal.Decimal `json:"nonTaxable"`
	Gross              decimal.Decimal `json:"gross"`
	EmployeeDeductions decimal.Decimal `json:"employeeDeductions"`
	EmployerCharges    decimal.Decimal `json:"employerCharges"`
	Net                decimal.Decimal `json:"net"`
}

type RunResult struct {
	RunID                  uuid.UUID          `json:"runId"`
	PayrollConfigurationID int                `json:"payrollConfigurationId"`
	Period                 Period             `json:"period"`
	Options                RunOptions         `json:"options"`
	Allocation             *Allocation        `json:"allocation,omitempty"`
	Breakdowns             []PayrollBreakdown `json:"breakdowns"`
	Transactions           []Transaction      `json:"transactions"`
	Totals                 Totals             `json:"totals"`
}

// JournalEntries flattens the transactions in posting order.
func (r RunResult) JournalEntries() []JournalEntry {
	var entries []JournalEntry
	for _, txn := range r.Transactions {
		entries = append(entries, txn.Entries...)
	}
	return entries
}
