package service

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/model"
)

// decide evaluates a prospective purchase against the pair's active limit.
// The warning compares the used amount before the purchase with the stored threshold.
func decide(limit model.CreditLimit, found bool, amount decimal.Decimal) model.Decision {
	if !found {
		return model.Decision{
			Status:     model.DecisionUnrestricted,
			MaxAmount:  decimal.Zero,
			UsedAmount: decimal.Zero,
			Remaining:  decimal.Zero,
			Message:    "no credit limit defined",
		}
	}

	maxAmount := limit.Data.MaxAmount
	used := limit.Data.UsedAmount
	remaining := maxAmount.Sub(used)

	decision := model.Decision{
		MaxAmount:  maxAmount,
		UsedAmount: used,
		Remaining:  remaining,
	}
	if maxAmount.IsPositive() {
		decision.WarningRatio, _ = used.Div(maxAmount).Float64()
	}

	if used.Add(amount).GreaterThan(maxAmount) {
		decision.Status = model.DecisionRejected
		decision.Message = fmt.Sprintf("credit limit exceeded! max: %s, used: %s, remaining: %s",
			money(maxAmount), money(used), money(remaining))
		return decision
	}

	if maxAmount.IsPositive() &&
		used.Div(maxAmount).GreaterThanOrEqual(decimal.NewFromFloat(limit.Data.WarningThreshold)) {
		decision.Status = model.DecisionWarning
		decision.Message = fmt.Sprintf("warning: reached %s%% of your credit limit. remaining: %s",
			used.Div(maxAmount).Mul(decimal.NewFromInt(100)).Round(0).String(), money(remaining))
		return decision
	}

	decision.Status = model.DecisionApproved
	decision.Message = fmt.Sprintf("credit limit ok. remaining: %s", money(remaining))
	return decision
}

// money форматирует сумму с разделителями тысяч
func money(d decimal.Decimal) string {
	d = d.Round(2)
	whole := humanize.Comma(d.Truncate(0).IntPart())
	frac := d.Sub(d.Truncate(0)).Abs()
	if frac.IsZero() {
		return whole
	}
	if d.IsNegative() && d.Truncate(0).IsZero() {
		whole = "-" + whole
	}
	return whole + frac.StringFixed(2)[1:]
}
