package payroll

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const (
	currencyCDF = 1
	currencyUSD = 2

	rubricINSSEmployee = 1
	rubricIPR          = 2
	rubricAdvance      = 3
	rubricINSSEmployer = 4

	accountSalaryExpense = 6611
	accountCreditor      = 4221
	accountINSSPayable   = 4311
	accountIPRPayable    = 4471
	accountAdvances      = 4251
	accountINSSExpense   = 6641
	costCenterAdmin      = 7
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

// testBrackets is an annual schedule in CDF with consistent cumulative
// amounts.
func testBrackets() []TaxBracket {
	rows := []struct{ start, end, rate, cumulative string }{
		{"0", "524160", "0", "0"},
		{"524160", "1428000", "15", "135576"},
		{"1428000", "2700000", "20", "389976"},
		{"2700000", "4620000", "22.5", "821976"},
		{"4620000", "7260000", "25", "1481976"},
		{"7260000", "10260000", "30", "2381976"},
		{"10260000", "13908000", "32.5", "3567576"},
		{"13908000", "16824000", "35", "4588176"},
		{"16824000", "22956000", "37.5", "6887676"},
		{"22956000", "0", "40", "0"},
	}
	twelve := decimal.NewFromInt(12)
	brackets := make([]TaxBracket, 0, len(rows))
	for i, row := range rows {
		brackets = append(brackets, TaxBracket{
			ID:                   i + 1,
			Rate:                 d(row.rate),
			AnnualRangeStart:     d(row.start),
			AnnualRangeEnd:       d(row.end),
			MonthlyRangeStart:    d(row.start).Div(twelve),
			MonthlyRangeEnd:      d(row.end).Div(twelve),
			AnnualCumulativeTax:  d(row.cumulative),
			MonthlyCumulativeTax: d(row.cumulative).Div(twelve),
			TaxScaleID:           1,
		})
	}
	return brackets
}

func testTaxContext() TaxContext {
	return TaxContext{Brackets: testBrackets(), Conversion: d("930")}
}

func testRubrics() []Rubric {
	return []Rubric{
		{
			ID: rubricINSSEmployee, Abbr: "INSS_EMP", Label: "INSS employee share", Value: d("3.5"),
			IsPercent: true, IsDiscount: true, IsSocialCare: true, IsEmployee: true,
			DebtorAccountID: accountINSSPayable,
		},
		{
			ID: rubricIPR, Abbr: "IPR", Label: "Professional income tax",
			IsDiscount: true, IsTax: true, IsEmployee: true, IsIPR: true,
			DebtorAccountID: accountIPRPayable,
		},
		{
			ID: rubricAdvance, Abbr: "ADV", Label: "Salary advance",
			IsDiscount: true, IsEmployee: true,
			DebtorAccountID: accountAdvances,
		},
		{
			ID: rubricINSSEmployer, Abbr: "INSS_ER", Label: "INSS employer share", Value: d("5"),
			IsPercent: true, IsDiscount: true, IsSocialCare: true,
			DebtorAccountID: accountINSSPayable, ExpenseAccountID: accountINSSExpense,
		},
	}
}

func classified(t *testing.T, rubrics []Rubric) ClassifiedRubrics {
	t.Helper()
	out, err := Classify(rubrics)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	return out
}

func testEmployee(id string, salary string, children int, advance string) EmployeePayrollContext {
	e := EmployeePayrollContext{
		EmployeeUUID:      id,
		DisplayName:       id,
		NumberOfChildren:  children,
		CostCenterID:      costCenterAdmin,
		CreditorAccountID: accountCreditor,
		BasicSalary:       d(salary),
		CurrencyID:        currencyUSD,
	}
	if advance != "" {
		e.RubricValues = map[int]decimal.Decimal{rubricAdvance: d(advance)}
	}
	return e
}

// referenceEmployees are three employees whose payslips were checked by
// hand: nets 164.76, 124.92 and 138.93.
func referenceEmployees() []EmployeePayrollContext {
	return []EmployeePayrollContext{
		testEmployee("emp-a", "196.00", 0, ""),
		testEmployee("emp-b", "207.78", 2, "50"),
		testEmployee("emp-c", "227.32", 0, "50"),
	}
}

func testAccounts() AccountMap {
	return AccountMap{SalaryExpenseAccountID: accountSalaryExpense}
}

func testPeriod() Period {
	return Period{
		Label:    "2024-03",
		DateFrom: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testInput() ConfigurationInput {
	return ConfigurationInput{
		PayrollConfigurationID: 42,
		Period:                 testPeriod(),
		Employees:              referenceEmployees(),
		Rubrics:                testRubrics(),
		TaxScale:               TaxScale{ID: 1, CurrencyID: currencyCDF, Brackets: testBrackets()},
		Envelope:               PayEnvelope{TotalAmount: d("20000"), WorkingDaysInPeriod: 26, CurrencyID: currencyUSD},
		Accounts:               testAccounts(),
	}
}

// testRates uses USD as the enterprise currency; 1 USD buys 930 CDF.
func testRates() StaticRates {
	return StaticRates{EnterpriseCurrencyID: currencyUSD, Rates: map[int]decimal.Decimal{currencyCDF: d("930")}}
}

// sequentialIDs returns a deterministic uuid source.
func sequentialIDs() func() uuid.UUID {
	var (
		mu sync.Mutex
		n  int
	)
	return func() uuid.UUID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
	}
}

func evaluateReference(t *testing.T) []PayrollBreakdown {
	t.Helper()
	rubrics := classified(t, testRubrics())
	var out []PayrollBreakdown
	for _, e := range referenceEmployees() {
		b, err := Evaluate(e, e.BasicSalary, rubrics, testTaxContext())
		if err != nil {
			t.Fatalf("evaluate %s: %v", e.EmployeeUUID, err)
		}
		out = append(out, b)
	}
	return out
}

type fakeStore struct {
	StaticRates
	mu        sync.Mutex
	saved     []RunResult
	committed map[int]bool
	jobs      map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{StaticRates: testRates(), committed: map[int]bool{}, jobs: map[string]string{}}
}

func (s *fakeStore) SaveRun(_ context.Context, result RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed[result.PayrollConfigurationID] {
		return ErrRunAlreadyCommitted
	}
	s.committed[result.PayrollConfigurationID] = true
	s.saved = append(s.saved, result)
	return nil
}

func (s *fakeStore) CreateJobRun(_ context.Context, jobType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("job-%d", len(s.jobs)+1)
	s.jobs[id] = "running"
	return id, nil
}

func (s *fakeStore) UpdateJobRun(_ context.Context, runID, status string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[runID] = status
	return nil
}
