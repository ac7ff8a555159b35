// Package policy holds the monthly spending ceiling decision. It is a
// pure function of the amounts involved so the store implementations and
// the tests share one source of truth for the limit rule.
package policy

import "github.com/shopspring/decimal"

// Decision is the outcome of a limit check. NewTotal is the monthly
// total the store would hold after the write, Current the total before
// it. On a rejection the caller must leave the store untouched.
type Decision struct {
	Accepted bool
	NewTotal decimal.Decimal
	Current  decimal.Decimal
}

// Decide checks a proposed expense against the monthly limit.
//
// existingOnDate is the amount already recorded for the transaction date
// (zero when the date has no record yet): the proposed amount merges into
// that record, it never replaces it, so the new monthly total is always
// currentTotal + proposed. The limit is inclusive: a total exactly at the
// limit is accepted.
func Decide(currentTotal, existingOnDate, proposed, limit decimal.Decimal) Decision {
	combined := existingOnDate.Add(proposed)
	newTotal := currentTotal.Sub(existingOnDate).Add(combined)

	if newTotal.GreaterThan(limit) {
		return Decision{Accepted: false, NewTotal: newTotal, Current: currentTotal}
	}
	return Decision{Accepted: true, NewTotal: newTotal, Current: currentTotal}
}
