package payroll

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PostingMeta struct {
	PeriodLabel string
	TransDate   time.Time
}

// BuildPostings turns the breakdowns into balanced commitment, withholding
// and social-charge transactions. Aggregate mode emits one transaction per
// category for the whole run; individual mode emits one set per employee.
// newID is called sequentially, in posting order.
func BuildPostings(breakdowns []PayrollBreakdown, accounts AccountMap, mode PostingMode, meta PostingMeta, newID func() uuid.UUID) ([]Transaction, error) {
	for _, b := range breakdowns {
		if err := checkAccounts(b, accounts); err != nil {
			return nil, err
		}
	}
	if newID == nil {
		newID = uuid.New
	}

	var sets []categorySet
	switch mode {
	case PostingAggregate:
		set := newCategorySet()
		for _, b := range breakdowns {
			set.add(b, accounts)
		}
		sets = append(sets, set)
	case PostingIndividual:
		for _, b := range breakdowns {
			set := newCategorySet()
			set.add(b, accounts)
			sets = append(sets, set)
		}
	default:
		return nil, configErrorf("unknown posting mode %q", mode)
	}

	var txns []Transaction
	for _, set := range sets {
		for _, builder := range set {
			if builder.empty() {
				continue
			}
			txn := builder.build(newID(), meta)
			if !txn.Balanced() {
				debit, credit := txn.Totals()
				return nil, fmt.Errorf("%w: type %d debit %s credit %s", ErrUnbalancedTransaction, txn.TypeID, debit, credit)
			}
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

func checkAccounts(b PayrollBreakdown, accounts AccountMap) error {
	if !b.GrossSalary.IsZero() && b.CreditorAccountID == 0 {
		return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, Role: AccountRoleCreditor}
	}
	if !b.Basic.IsZero() && accounts.SalaryExpenseAccountID == 0 {
		return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, Role: AccountRoleSalaryExpense}
	}
	for _, line := range b.Benefits {
		if accounts.For(line.Rubric).ExpenseAccountID == 0 {
			return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, RubricAbbr: line.Rubric.Abbr, Role: AccountRoleExpense}
		}
	}
	for _, line := range b.EmployeeDeductions {
		if accounts.For(line.Rubric).DebtorAccountID == 0 {
			return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, RubricAbbr: line.Rubric.Abbr, Role: AccountRoleDebtor}
		}
	}
	for _, line := range b.EmployerCharges {
		mapped := accounts.For(line.Rubric)
		if mapped.DebtorAccountID == 0 {
			return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, RubricAbbr: line.Rubric.Abbr, Role: AccountRoleDebtor}
		}
		if mapped.ExpenseAccountID == 0 {
			return &UnmappedAccountError{EmployeeUUID: b.EmployeeUUID, RubricAbbr: line.Rubric.Abbr, Role: AccountRoleExpense}
		}
	}
	return nil
}

type categorySet [3]*txBuilder

func newCategorySet() categorySet {
	return categorySet{
		newTxBuilder(TransactionTypeCommitment, "Commitment of pay"),
		newTxBuilder(TransactionTypeWithholding, "Withholding on pay"),
		newTxBuilder(TransactionTypeSocialCharge, "Social charges on pay"),
	}
}

func (set categorySet) add(b PayrollBreakdown, accounts AccountMap) {
	commitment, withholding, social := set[0], set[1], set[2]

	commitment.debit(accounts.SalaryExpenseAccountID, b.CostCenterID, "", b.Basic)
	for _, line := range b.Benefits {
		commitment.debit(accounts.For(line.Rubric).ExpenseAccountID, b.CostCenterID, "", line.Amount)
	}
	commitment.credit(b.CreditorAccountID, 0, b.EmployeeUUID, b.GrossSalary)

	withholding.debit(b.CreditorAccountID, 0, b.EmployeeUUID, b.TotalEmployeeDeductions())
	for _, line := range b.EmployeeDeductions {
		withholding.credit(accounts.For(line.Rubric).DebtorAccountID, 0, "", line.Amount)
	}

	for _, line := range b.EmployerCharges {
		mapped := accounts.For(line.Rubric)
		social.debit(mapped.ExpenseAccountID, b.CostCenterID, "", line.Amount)
		social.credit(mapped.DebtorAccountID, 0, "", line.Amount)
	}
}

type lineKey struct {
	account    int
	costCenter int
	entity     string
	debit      bool
}

// txBuilder groups amounts per account, cost center and entity, keeping the
// order in which lines first appear.
type txBuilder struct {
	typeID      int
	description string
	keys        []lineKey
	amounts     map[lineKey]decimal.Decimal
}

func newTxBuilder(typeID int, description string) *txBuilder {
	return &txBuilder{typeID: typeID, description: description, amounts: map[lineKey]decimal.Decimal{}}
}

func (t *txBuilder) debit(account, costCenter int, entity string, amount decimal.Decimal) {
	t.add(lineKey{account: account, costCenter: costCenter, entity: entity, debit: true}, amount)
}

func (t *txBuilder) credit(account, costCenter int, entity string, amount decimal.Decimal) {
	t.add(lineKey{account: account, costCenter: costCenter, entity: entity}, amount)
}

func (t *txBuilder) add(key lineKey, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	current, ok := t.amounts[key]
	if !ok {
		t.keys = append(t.keys, key)
	}
	t.amounts[key] = current.Add(amount)
}

func (t *txBuilder) empty() bool {
	return len(t.keys) == 0
}

func (t *txBuilder) build(id uuid.UUID, meta PostingMeta) Transaction {
	description := t.description
	if meta.PeriodLabel != "" {
		description = description + " " + meta.PeriodLabel
	}
	txn := Transaction{UUID: id, TypeID: t.typeID}
	for _, key := range t.keys {
		entry := JournalEntry{
			TransactionUUID:   id,
			TransactionTypeID: t.typeID,
			AccountID:         key.account,
			Debit:             decimal.Zero,
			Credit:            decimal.Zero,
			EntityUUID:        key.entity,
			CostCenterID:      key.costCenter,
			Description:       description,
			TransDate:         meta.TransDate,
		}
		if key.debit {
			entry.Debit = t.amounts[key]
		} else {
			entry.Credit = t.amounts[key]
		}
		txn.Entries = append(txn.Entries, entry)
	}
	return txn
}
