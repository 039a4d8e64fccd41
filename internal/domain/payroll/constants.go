package payroll

const (
	TransactionTypeCommitment   = 15
	TransactionTypeWithholding  = 16
	TransactionTypeSocialCharge = 17

	JobCommitment = "payroll_commitment"

	LineCategoryBenefit           = "benefit"
	LineCategoryEmployeeDeduction = "employee_deduction"
	LineCategoryEmployerCharge    = "employer_charge"

	AccountRoleSalaryExpense = "salary_expense"
	AccountRoleCreditor      = "creditor"
	AccountRoleExpense       = "expense"
	AccountRoleDebtor        = "debtor"

	// moneyPlaces is the precision of every currency amount, rounded half-up.
	moneyPlaces = 2
	// ratePlaces is the precision of the published remuneration rate.
	ratePlaces = 4
	// divisionPrecision bounds the digits kept by intermediate quotients.
	divisionPrecision = 16

	childReductionPercent = 2
	monthsPerYear         = 12
)

type PostingMode string

const (
	PostingAggregate  PostingMode = "aggregate"
	PostingIndividual PostingMode = "individual"
)

// ParsePostingMode accepts the canonical names and the enterprise setting
// values "default" and "individually".
func ParsePostingMode(value string) (PostingMode, bool) {
	switch value {
	case "aggregate", "default", "":
		return PostingAggregate, true
	case "individual", "individually":
		return PostingIndividual, true
	}
	return "", false
}

type Kind int

const (
	KindBenefit Kind = iota + 1
	KindTax
	KindSocialCharge
	KindEmployeeDeduction
	KindEmployerCharge
)

func (k Kind) String() string {
	switch k {
	case KindBenefit:
		return "benefit"
	case KindTax:
		return "tax"
	case KindSocialCharge:
		return "social_charge"
	case KindEmployeeDeduction:
		return "employee_deduction"
	case KindEmployerCharge:
		return "employer_charge"
	}
	return "unknown"
}
