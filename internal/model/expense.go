package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the per-user configuration created on registration
type User struct {
	Username     string
	ChatID       int64
	MonthlyLimit decimal.Decimal
}

// Expense is one fuel expense record. At most one record exists per
// (Username, TxDate) pair: a second amount on the same date is merged
// into the existing record.
type Expense struct {
	ID       int64
	Username string
	TxDate   time.Time
	Amount   decimal.Decimal
}

// AddExpenseResult is the outcome of adding an expense. When Accepted is
// false the store was left untouched and Current/Attempted/Limit explain
// the rejection.
type AddExpenseResult struct {
	Accepted  bool
	NewTotal  decimal.Decimal
	Remaining decimal.Decimal

	Current   decimal.Decimal
	Attempted decimal.Decimal
	Limit     decimal.Decimal
}

type MonthlySummary struct {
	TotalSpent decimal.Decimal
	Limit      decimal.Decimal
	Remaining  decimal.Decimal
}

// MonthTotal is one row of a year summary, months without expenses are omitted
type MonthTotal struct {
	Month int
	Total decimal.Decimal
}

type YearSummary struct {
	Year       int
	Months     []MonthTotal
	GrandTotal decimal.Decimal
}
