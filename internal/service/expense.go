package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dkarpov/fuelbot/internal/date"
	"github.com/dkarpov/fuelbot/internal/model"
	"github.com/dkarpov/fuelbot/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("user not found")
	// ErrStorage is deliberately opaque: the underlying store failure is
	// logged here and never crosses the service boundary.
	ErrStorage = errors.New("storage error")
)

type Expenses interface {
	AddExpense(ctx context.Context, username string, amount decimal.Decimal) (*model.AddExpenseResult, error)
	MonthlySummary(ctx context.Context, username string) (*model.MonthlySummary, error)
	ListMonth(ctx context.Context, username string) ([]model.Expense, error)
	ClearMonth(ctx context.Context, username string) (int64, error)
	RemoveLast(ctx context.Context, username string) (*model.Expense, error)
	YearSummary(ctx context.Context, username string) (*model.YearSummary, error)
}

// Expense orchestrates the ledger store and the limit policy. It holds
// no state of its own: every operation resolves the user, resolves the
// current period from the clock and goes to the store.
type Expense struct {
	ledger repository.Ledger
	users  repository.Users
	clock  *date.Clock
}

func NewExpense(ledger repository.Ledger, users repository.Users, clock *date.Clock) *Expense {
	return &Expense{
		ledger: ledger,
		users:  users,
		clock:  clock,
	}
}

// AddExpense records amount against today's date. The limit check and
// the write happen in one atomic store operation; on a rejection the
// store is untouched and the result reports the pre-change total, the
// raw attempted amount and the limit.
func (e *Expense) AddExpense(ctx context.Context, username string, amount decimal.Decimal) (*model.AddExpenseResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, amount)
	}

	user, err := e.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	today := e.clock.Today()
	decision, err := e.ledger.AddWithLimitCheck(ctx, username, today, amount, user.MonthlyLimit)
	if err != nil {
		logrus.Errorf("service.Expense, add expense for %s: %v", username, err)
		return nil, ErrStorage
	}

	if !decision.Accepted {
		return &model.AddExpenseResult{
			Accepted:  false,
			Current:   decision.Current,
			Attempted: amount,
			Limit:     user.MonthlyLimit,
		}, nil
	}
	return &model.AddExpenseResult{
		Accepted:  true,
		NewTotal:  decision.NewTotal,
		Remaining: user.MonthlyLimit.Sub(decision.NewTotal),
		Limit:     user.MonthlyLimit,
	}, nil
}

func (e *Expense) MonthlySummary(ctx context.Context, username string) (*model.MonthlySummary, error) {
	user, err := e.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	today := e.clock.Today()
	total, err := e.ledger.MonthlyTotal(ctx, username, today.Year(), int(today.Month()))
	if err != nil {
		logrus.Errorf("service.Expense, monthly summary for %s: %v", username, err)
		return nil, ErrStorage
	}

	return &model.MonthlySummary{
		TotalSpent: total,
		Limit:      user.MonthlyLimit,
		Remaining:  user.MonthlyLimit.Sub(total),
	}, nil
}

// ListMonth returns the current month's records ordered by date
// ascending. An empty month is an empty list, not an error.
func (e *Expense) ListMonth(ctx context.Context, username string) ([]model.Expense, error) {
	if _, err := e.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	today := e.clock.Today()
	records, err := e.ledger.MonthRecords(ctx, username, today.Year(), int(today.Month()))
	if err != nil {
		logrus.Errorf("service.Expense, list month for %s: %v", username, err)
		return nil, ErrStorage
	}
	return records, nil
}

func (e *Expense) ClearMonth(ctx context.Context, username string) (int64, error) {
	if _, err := e.resolveUser(ctx, username); err != nil {
		return 0, err
	}

	today := e.clock.Today()
	deleted, err := e.ledger.DeleteMonthRecords(ctx, username, today.Year(), int(today.Month()))
	if err != nil {
		logrus.Errorf("service.Expense, clear month for %s: %v", username, err)
		return 0, ErrStorage
	}
	return deleted, nil
}

// RemoveLast deletes the most recent record of the current month, latest
// date first with the store id as tiebreaker. Returns nil when the month
// is empty.
func (e *Expense) RemoveLast(ctx context.Context, username string) (*model.Expense, error) {
	if _, err := e.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	today := e.clock.Today()
	deleted, err := e.ledger.DeleteLatestMonthRecord(ctx, username, today.Year(), int(today.Month()))
	if err != nil {
		logrus.Errorf("service.Expense, remove last for %s: %v", username, err)
		return nil, ErrStorage
	}
	return deleted, nil
}

func (e *Expense) YearSummary(ctx context.Context, username string) (*model.YearSummary, error) {
	if _, err := e.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	year := e.clock.Today().Year()
	totals, err := e.ledger.YearTotals(ctx, username, year)
	if err != nil {
		logrus.Errorf("service.Expense, year summary for %s: %v", username, err)
		return nil, ErrStorage
	}

	summary := &model.YearSummary{
		Year:       year,
		Months:     totals,
		GrandTotal: decimal.Zero,
	}
	for _, mt := range totals {
		summary.GrandTotal = summary.GrandTotal.Add(mt.Total)
	}
	return summary, nil
}

// MonthName returns the English name for a month number 1..12.
func MonthName(month int) string {
	return time.Month(month).String()
}

func (e *Expense) resolveUser(ctx context.Context, username string) (*model.User, error) {
	user, err := e.users.GetUser(ctx, username)
	if err != nil {
		logrus.Errorf("service.Expense, get user %s: %v", username, err)
		return nil, ErrStorage
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return user, nil
}

var _ Expenses = (*Expense)(nil)
