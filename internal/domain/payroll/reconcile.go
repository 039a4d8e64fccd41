package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reconcile checks generated transactions against the breakdowns they were
// built from: every transaction balances, commitment debits equal total
// gross, withholding credits equal employee deductions and social-charge
// credits equal employer charges. In individual mode a transaction may
// reference a single employee at most. Every failure wraps
// ErrUnbalancedTransaction.
func Reconcile(breakdowns []PayrollBreakdown, txns []Transaction, mode PostingMode) error {
	var gross, deductions, charges decimal.Decimal
	for _, b := range breakdowns {
		gross = gross.Add(b.GrossSalary)
		deductions = deductions.Add(b.TotalEmployeeDeductions())
		charges = charges.Add(b.TotalEmployerCharges())
	}

	var committed, withheld, social decimal.Decimal
	for _, txn := range txns {
		debit, credit := txn.Totals()
		if !debit.Equal(credit) {
			return fmt.Errorf("%w: transaction %s debit %s credit %s", ErrUnbalancedTransaction, txn.UUID, debit, credit)
		}
		if mode == PostingIndividual && len(txn.Entities()) > 1 {
			return fmt.Errorf("%w: transaction %s references %d employees", ErrUnbalancedTransaction, txn.UUID, len(txn.Entities()))
		}
		switch txn.TypeID {
		case TransactionTypeCommitment:
			committed = committed.Add(debit)
		case TransactionTypeWithholding:
			withheld = withheld.Add(credit)
		case TransactionTypeSocialCharge:
			social = social.Add(credit)
		}
	}

	if !committed.Equal(gross) {
		return fmt.Errorf("%w: commitment total %s does not match gross %s", ErrUnbalancedTransaction, committed, gross)
	}
	if !withheld.Equal(deductions) {
		return fmt.Errorf("%w: withholding total %s does not match deductions %s", ErrUnbalancedTransaction, withheld, deductions)
	}
	if !social.Equal(charges) {
		return fmt.Errorf("%w: social charge total %s does not match employer charges %s", ErrUnbalancedTransaction, social, charges)
	}
	return nil
}
