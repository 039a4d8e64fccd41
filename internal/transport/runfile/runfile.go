// Package runfile reads payroll run definitions from YAML.
package runfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bhima/internal/domain/payroll"
)

const dateLayout = "2006-01-02"

// RunFile is a decoded run definition: the engine input plus the rate
// table needed to convert into the tax scale currency.
type RunFile struct {
	Input                payroll.ConfigurationInput
	EnterpriseCurrencyID int
	ExchangeRates        []payroll.ExchangeRate
}

// Rates returns the file's exchange rates as a static rate source, using
// the latest rate per currency.
func (f RunFile) Rates() payroll.StaticRates {
	rates := payroll.StaticRates{EnterpriseCurrencyID: f.EnterpriseCurrencyID, Rates: map[int]decimal.Decimal{}}
	latest := map[int]time.Time{}
	for _, r := range f.ExchangeRates {
		if seen, ok := latest[r.CurrencyID]; ok && r.EffectiveDate.Before(seen) {
			continue
		}
		latest[r.CurrencyID] = r.EffectiveDate
		rates.Rates[r.CurrencyID] = r.Rate
	}
	return rates
}

func Load(path string) (RunFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return RunFile{}, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (RunFile, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return RunFile{}, errors.New("run file is empty")
		}
		return RunFile{}, fmt.Errorf("decode run file: %w", err)
	}
	return doc.toRunFile()
}

type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

type date struct {
	time.Time
}

func (d *date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a date", node.Line)
	}
	t, err := time.Parse(dateLayout, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a YYYY-MM-DD date", node.Line, node.Value)
	}
	d.Time = t
	return nil
}

type document struct {
	PayrollConfigurationID int           `yaml:"payrollConfigurationId"`
	Period                 periodDoc     `yaml:"period"`
	PostingMode            string        `yaml:"postingMode"`
	EnterpriseCurrencyID   int           `yaml:"enterpriseCurrencyId"`
	Envelope               envelopeDoc   `yaml:"envelope"`
	ExchangeRates          []rateDoc     `yaml:"exchangeRates"`
	Accounts               accountsDoc   `yaml:"accounts"`
	TaxScale               taxScaleDoc   `yaml:"taxScale"`
	Rubrics                []rubricDoc   `yaml:"rubrics"`
	Employees              []employeeDoc `yaml:"employees"`
}

type periodDoc struct {
	Label    string `yaml:"label"`
	DateFrom date   `yaml:"dateFrom"`
	DateTo   date   `yaml:"dateTo"`
}

type envelopeDoc struct {
	TotalAmount amount `yaml:"totalAmount"`
	WorkingDays int    `yaml:"workingDays"`
	CurrencyID  int    `yaml:"currencyId"`
}

type rateDoc struct {
	CurrencyID int    `yaml:"currencyId"`
	Rate       amount `yaml:"rate"`
	Date       date   `yaml:"date"`
}

type accountsDoc struct {
	SalaryExpense int                       `yaml:"salaryExpense"`
	Rubrics       map[string]rubricAccounts `yaml:"rubrics"`
}

type rubricAccounts struct {
	Debtor  int `yaml:"debtor"`
	Expense int `yaml:"expense"`
}

type taxScaleDoc struct {
	ID         int          `yaml:"id"`
	CurrencyID int          `yaml:"currencyId"`
	Brackets   []bracketDoc `yaml:"brackets"`
}

type bracketDoc struct {
	ID         int    `yaml:"id"`
	Rate       amount `yaml:"rate"`
	Start      amount `yaml:"start"`
	End        amount `yaml:"end"`
	Cumulative amount `yaml:"cumulative"`
}

type rubricDoc struct {
	ID               int    `yaml:"id"`
	Abbr             string `yaml:"abbr"`
	Label            string `yaml:"label"`
	Value            amount `yaml:"value"`
	Percent          bool   `yaml:"percent"`
	Discount         bool   `yaml:"discount"`
	Tax              bool   `yaml:"tax"`
	SocialCare       bool   `yaml:"socialCare"`
	Employee         bool   `yaml:"employee"`
	IPR              bool   `yaml:"ipr"`
	Seniority        bool   `yaml:"seniority"`
	FamilyAllowances bool   `yaml:"familyAllowances"`
	Indice           bool   `yaml:"indice"`
	DebtorAccountID  int    `yaml:"debtorAccountId"`
	ExpenseAccountID int    `yaml:"expenseAccountId"`
}

type employeeDoc struct {
	UUID              string            `yaml:"uuid"`
	Name              string            `yaml:"name"`
	BaseIndex         amount            `yaml:"baseIndex"`
	FunctionIndex     amount            `yaml:"functionIndex"`
	GradeIndex        amount            `yaml:"gradeIndex"`
	DaysWorked        amount            `yaml:"daysWorked"`
	AdditionalDays    amount            `yaml:"additionalDays"`
	TotalDays         amount            `yaml:"totalDays"`
	Children          int               `yaml:"children"`
	Seniority         int               `yaml:"seniority"`
	CostCenterID      int               `yaml:"costCenterId"`
	CreditorAccountID int               `yaml:"creditorAccountId"`
	BasicSalary       amount            `yaml:"basicSalary"`
	CurrencyID        int               `yaml:"currencyId"`
	Offdays           []offdayDoc       `yaml:"offdays"`
	Holidays          []holidayDoc      `yaml:"holidays"`
	Rubrics           map[string]amount `yaml:"rubrics"`
}

type offdayDoc struct {
	Date       date   `yaml:"date"`
	PercentPay amount `yaml:"percentPay"`
}

type holidayDoc struct {
	Label      string `yaml:"label"`
	Days       int    `yaml:"days"`
	Percentage amount `yaml:"percentage"`
}

func (doc document) toRunFile() (RunFile, error) {
	// An absent mode is left empty so the caller's default applies.
	var mode payroll.PostingMode
	if doc.PostingMode != "" {
		parsed, ok := payroll.ParsePostingMode(doc.PostingMode)
		if !ok {
			return RunFile{}, fmt.Errorf("unknown posting mode %q", doc.PostingMode)
		}
		mode = parsed
	}

	in := payroll.ConfigurationInput{
		PayrollConfigurationID: doc.PayrollConfigurationID,
		Period: payroll.Period{
			Label:    doc.Period.Label,
			DateFrom: doc.Period.DateFrom.Time,
			DateTo:   doc.Period.DateTo.Time,
		},
		Envelope: payroll.PayEnvelope{
			TotalAmount:         doc.Envelope.TotalAmount.Decimal,
			WorkingDaysInPeriod: doc.Envelope.WorkingDays,
			CurrencyID:          doc.Envelope.CurrencyID,
		},
		PostingMode: mode,
		TaxScale:    payroll.TaxScale{ID: doc.TaxScale.ID, CurrencyID: doc.TaxScale.CurrencyID},
		Accounts:    payroll.AccountMap{SalaryExpenseAccountID: doc.Accounts.SalaryExpense, Rubrics: map[int]payroll.RubricAccounts{}},
	}

	for _, b := range doc.TaxScale.Brackets {
		in.TaxScale.Brackets = append(in.TaxScale.Brackets, payroll.TaxBracket{
			ID:                   b.ID,
			Rate:                 b.Rate.Decimal,
			AnnualRangeStart:     b.Start.Decimal,
			AnnualRangeEnd:       b.End.Decimal,
			MonthlyRangeStart:    b.Start.Div(decimal.NewFromInt(12)),
			MonthlyRangeEnd:      b.End.Div(decimal.NewFromInt(12)),
			AnnualCumulativeTax:  b.Cumulative.Decimal,
			MonthlyCumulativeTax: b.Cumulative.Div(decimal.NewFromInt(12)),
			TaxScaleID:           doc.TaxScale.ID,
		})
	}

	byAbbr := make(map[string]int, len(doc.Rubrics))
	for _, r := range doc.Rubrics {
		if _, dup := byAbbr[r.Abbr]; dup {
			return RunFile{}, fmt.Errorf("rubric %s is defined twice", r.Abbr)
		}
		byAbbr[r.Abbr] = r.ID
		in.Rubrics = append(in.Rubrics, payroll.Rubric{
			ID:                 r.ID,
			Abbr:               r.Abbr,
			Label:              r.Label,
			Value:              r.Value.Decimal,
			IsPercent:          r.Percent,
			IsDiscount:         r.Discount,
			IsTax:              r.Tax,
			IsSocialCare:       r.SocialCare,
			IsEmployee:         r.Employee,
			IsIPR:              r.IPR,
			IsSeniorityBonus:   r.Seniority,
			IsFamilyAllowances: r.FamilyAllowances,
			IsIndice:           r.Indice,
			DebtorAccountID:    r.DebtorAccountID,
			ExpenseAccountID:   r.ExpenseAccountID,
		})
	}

	for abbr, accounts := range doc.Accounts.Rubrics {
		id, ok := byAbbr[abbr]
		if !ok {
			return RunFile{}, fmt.Errorf("accounts reference unknown rubric %s", abbr)
		}
		in.Accounts.Rubrics[id] = payroll.RubricAccounts{DebtorAccountID: accounts.Debtor, ExpenseAccountID: accounts.Expense}
	}

	for _, e := range doc.Employees {
		employee := payroll.EmployeePayrollContext{
			EmployeeUUID:      e.UUID,
			DisplayName:       e.Name,
			BaseIndex:         e.BaseIndex.Decimal,
			FunctionIndex:     e.FunctionIndex.Decimal,
			GradeIndex:        e.GradeIndex.Decimal,
			DaysWorked:        e.DaysWorked.Decimal,
			AdditionalDays:    e.AdditionalDays.Decimal,
			TotalDaysInPeriod: e.TotalDays.Decimal,
			CurrencyID:        e.CurrencyID,
			NumberOfChildren:  e.Children,
			YearsOfSeniority:  e.Seniority,
			CostCenterID:      e.CostCenterID,
			CreditorAccountID: e.CreditorAccountID,
			BasicSalary:       e.BasicSalary.Decimal,
		}
		if employee.EmployeeUUID == "" {
			return RunFile{}, fmt.Errorf("employee %q has no uuid", e.Name)
		}
		for _, o := range e.Offdays {
			employee.Offdays = append(employee.Offdays, payroll.Offday{Date: o.Date.Time, PercentPay: o.PercentPay.Decimal})
		}
		for _, h := range e.Holidays {
			employee.Holidays = append(employee.Holidays, payroll.Holiday{Label: h.Label, Days: h.Days, Percentage: h.Percentage.Decimal})
		}
		if len(e.Rubrics) > 0 {
			employee.RubricValues = make(map[int]decimal.Decimal, len(e.Rubrics))
			for abbr, value := range e.Rubrics {
				id, ok := byAbbr[abbr]
				if !ok {
					return RunFile{}, fmt.Errorf("employee %s references unknown rubric %s", e.UUID, abbr)
				}
				employee.RubricValues[id] = value.Decimal
			}
		}
		in.Employees = append(in.Employees, employee)
	}

	if len(doc.ExchangeRates) > 0 && doc.EnterpriseCurrencyID <= 0 {
		return RunFile{}, errors.New("exchangeRates need an enterpriseCurrencyId")
	}
	file := RunFile{Input: in, EnterpriseCurrencyID: doc.EnterpriseCurrencyID}
	for _, r := range doc.ExchangeRates {
		file.ExchangeRates = append(file.ExchangeRates, payroll.ExchangeRate{
			CurrencyID:    r.CurrencyID,
			Rate:          r.Rate.Decimal,
			EffectiveDate: r.Date.Time,
		})
	}
	return file, nil
}
