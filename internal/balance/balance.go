// Package balance holds the arithmetic of the credit ledger: how an entry
// moves the running balance and how it moves a limit's used amount.
package balance

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/model"
)

var ErrUnknownTransactionType = errors.New("unknown transaction type")

// Next returns the balance after applying an entry to before.
// Payments are not floored: a negative balance is money owed to the customer.
func Next(before decimal.Decimal, txType model.TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch txType {
	case model.TransactionPurchase:
		return before.Add(amount), nil
	case model.TransactionPayment:
		return before.Sub(amount), nil
	case model.TransactionAdjustment:
		// корректировка задает баланс напрямую
		return amount, nil
	default:
		return before, ErrUnknownTransactionType
	}
}

// Direction maps an entry type to its effect on the used amount.
// Adjustments do not touch the limit.
func Direction(txType model.TransactionType) (model.UsageDirection, bool) {
	switch txType {
	case model.TransactionPurchase:
		return model.UsageIncrease, true
	case model.TransactionPayment:
		return model.UsageDecrease, true
	default:
		return 0, false
	}
}

// Used returns the used amount after moving it by amount.
// A decrease clamps at zero, silently absorbing overpayment.
func Used(used decimal.Decimal, direction model.UsageDirection, amount decimal.Decimal) decimal.Decimal {
	switch direction {
	case model.UsageIncrease:
		return used.Add(amount)
	case model.UsageDecrease:
		next := used.Sub(amount)
		if next.IsNegative() {
			return decimal.Zero
		}
		return next
	default:
		return used
	}
}

// Expected is the used amount the ledger implies for a balance.
func Expected(balance decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

type Op struct {
	Type   model.TransactionType
	Amount decimal.Decimal
}

// Replay applies ops to a zero balance and returns the final balance.
func Replay(ops []Op) (decimal.Decimal, error) {
	current := decimal.Zero
	for _, op := range ops {
		next, err := Next(current, op.Type, op.Amount)
		if err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}
