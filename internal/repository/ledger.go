package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dkarpov/fuelbot/internal/date"
	"github.com/dkarpov/fuelbot/internal/model"
	"github.com/dkarpov/fuelbot/internal/policy"
)

var (
	// ErrConflict means a second row for the same (username, tx_date) was
	// attempted. The engine checks first, so seeing this is a bug, not a
	// transient condition.
	ErrConflict = errors.New("expense for this date already exists")
	ErrNotFound = errors.New("expense not found")
)

//go:generate mockery --name=Ledger

// Ledger is the expense store. It owns durability and the
// one-row-per-user-per-day constraint; AddWithLimitCheck is the only
// operation that both reads and writes, and it runs in a single
// serializable transaction so two concurrent adds for the same user
// cannot both pass the limit check against a stale total.
type Ledger interface {
	AddWithLimitCheck(ctx context.Context, username string, txDate time.Time, amount, limit decimal.Decimal) (policy.Decision, error)
	RecordForDate(ctx context.Context, username string, txDate time.Time) (*model.Expense, error)
	Create(ctx context.Context, username string, txDate time.Time, amount decimal.Decimal) (int64, error)
	UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal) error
	MonthlyTotal(ctx context.Context, username string, year, month int) (decimal.Decimal, error)
	MonthRecords(ctx context.Context, username string, year, month int) ([]model.Expense, error)
	DeleteMonthRecords(ctx context.Context, username string, year, month int) (int64, error)
	DeleteLatestMonthRecord(ctx context.Context, username string, year, month int) (*model.Expense, error)
	YearTotals(ctx context.Context, username string, year int) ([]model.MonthTotal, error)
}

type Postgres struct {
	conn    *pgxpool.Pool
	timeout time.Duration
}

func NewPostgres(conn *pgxpool.Pool, timeout time.Duration) *Postgres {
	return &Postgres{
		conn:    conn,
		timeout: timeout,
	}
}

// opCtx bounds every store call; an expired deadline surfaces to the
// caller as an ordinary error, it is never retried here.
func (p *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Postgres) AddWithLimitCheck(ctx context.Context, username string, txDate time.Time, amount, limit decimal.Decimal) (policy.Decision, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return policy.Decision{}, fmt.Errorf("repository.Ledger, begin tx error: %v", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	first, last := date.MonthBounds(txDate.Year(), int(txDate.Month()))

	var totalStr string
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM expenses WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3`,
		username, first, last).Scan(&totalStr)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("repository.Ledger, monthly total error: %v", err)
	}
	currentTotal, err := decimal.NewFromString(totalStr)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("repository.Ledger, bad total %q: %v", totalStr, err)
	}

	existing, err := scanExpense(tx.QueryRow(ctx,
		`SELECT id, username, tx_date, amount::text FROM expenses WHERE username=$1 AND tx_date=$2`,
		username, txDate))
	if err != nil {
		return policy.Decision{}, err
	}

	existingAmount := decimal.Zero
	if existing != nil {
		existingAmount = existing.Amount
	}

	decision := policy.Decide(currentTotal, existingAmount, amount, limit)
	if !decision.Accepted {
		// reject path leaves the store untouched, rollback is a no-op
		return decision, nil
	}

	if existing != nil {
		combined := existing.Amount.Add(amount)
		_, err = tx.Exec(ctx, `UPDATE expenses SET amount=$1::numeric WHERE id=$2`, combined.String(), existing.ID)
	} else {
		_, err = tx.Exec(ctx, `INSERT INTO expenses (username, tx_date, amount) VALUES ($1, $2, $3::numeric)`,
			username, txDate, amount.String())
	}
	if err != nil {
		return policy.Decision{}, fmt.Errorf("repository.Ledger, write expense error: %v", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return policy.Decision{}, fmt.Errorf("repository.Ledger, commit error: %v", err)
	}
	return decision, nil
}

func (p *Postgres) RecordForDate(ctx context.Context, username string, txDate time.Time) (*model.Expense, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	return scanExpense(p.conn.QueryRow(ctx,
		`SELECT id, username, tx_date, amount::text FROM expenses WHERE username=$1 AND tx_date=$2`,
		username, txDate))
}

func (p *Postgres) Create(ctx context.Context, username string, txDate time.Time, amount decimal.Decimal) (int64, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	var id int64
	err := p.conn.QueryRow(ctx,
		`INSERT INTO expenses (username, tx_date, amount) VALUES ($1, $2, $3::numeric)
		 ON CONFLICT (username, tx_date) DO NOTHING RETURNING id`,
		username, txDate, amount.String()).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("repository.Ledger, create expense error: %v", err)
	}
	return id, nil
}

func (p *Postgres) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	commandTag, err := p.conn.Exec(ctx, `UPDATE expenses SET amount=$1::numeric WHERE id=$2`, amount.String(), id)
	if err != nil {
		return fmt.Errorf("repository.Ledger, update amount error: %v", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MonthlyTotal(ctx context.Context, username string, year, month int) (decimal.Decimal, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	first, last := date.MonthBounds(year, month)

	var totalStr string
	err := p.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM expenses WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3`,
		username, first, last).Scan(&totalStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("repository.Ledger, monthly total error: %v", err)
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("repository.Ledger, bad total %q: %v", totalStr, err)
	}
	return total, nil
}

func (p *Postgres) MonthRecords(ctx context.Context, username string, year, month int) ([]model.Expense, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	first, last := date.MonthBounds(year, month)

	rows, err := p.conn.Query(ctx,
		`SELECT id, username, tx_date, amount::text FROM expenses
		 WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3
		 ORDER BY tx_date ASC, id DESC`,
		username, first, last)
	if err != nil {
		return nil, fmt.Errorf("repository.Ledger, month records error: %v", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		var (
			e         model.Expense
			amountStr string
		)
		if err = rows.Scan(&e.ID, &e.Username, &e.TxDate, &amountStr); err != nil {
			return nil, fmt.Errorf("repository.Ledger, scan expense error: %v", err)
		}
		if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("repository.Ledger, bad amount %q: %v", amountStr, err)
		}
		expenses = append(expenses, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Ledger, month records rows error: %v", err)
	}
	return expenses, nil
}

func (p *Postgres) DeleteMonthRecords(ctx context.Context, username string, year, month int) (int64, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	first, last := date.MonthBounds(year, month)

	commandTag, err := p.conn.Exec(ctx,
		`DELETE FROM expenses WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3`,
		username, first, last)
	if err != nil {
		return 0, fmt.Errorf("repository.Ledger, delete month error: %v", err)
	}
	return commandTag.RowsAffected(), nil
}

func (p *Postgres) DeleteLatestMonthRecord(ctx context.Context, username string, year, month int) (*model.Expense, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	first, last := date.MonthBounds(year, month)

	expense, err := scanExpense(p.conn.QueryRow(ctx,
		`DELETE FROM expenses WHERE id = (
		     SELECT id FROM expenses
		     WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3
		     ORDER BY tx_date DESC, id DESC LIMIT 1
		 ) RETURNING id, username, tx_date, amount::text`,
		username, first, last))
	if err != nil {
		return nil, err
	}
	return expense, nil
}

func (p *Postgres) YearTotals(ctx context.Context, username string, year int) ([]model.MonthTotal, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	rows, err := p.conn.Query(ctx,
		`SELECT EXTRACT(MONTH FROM tx_date)::int AS month, SUM(amount)::text AS total
		 FROM expenses
		 WHERE username=$1 AND tx_date >= $2 AND tx_date <= $3
		 GROUP BY month
		 ORDER BY month ASC`,
		username,
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("repository.Ledger, year totals error: %v", err)
	}
	defer rows.Close()

	var totals []model.MonthTotal
	for rows.Next() {
		var (
			mt       model.MonthTotal
			totalStr string
		)
		if err = rows.Scan(&mt.Month, &totalStr); err != nil {
			return nil, fmt.Errorf("repository.Ledger, scan year total error: %v", err)
		}
		if mt.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("repository.Ledger, bad total %q: %v", totalStr, err)
		}
		totals = append(totals, mt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Ledger, year totals rows error: %v", err)
	}
	return totals, nil
}

func scanExpense(row pgx.Row) (*model.Expense, error) {
	var (
		e         model.Expense
		amountStr string
	)
	err := row.Scan(&e.ID, &e.Username, &e.TxDate, &amountStr)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Ledger, scan expense error: %v", err)
	}
	e.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("repository.Ledger, bad amount %q: %v", amountStr, err)
	}
	return &e, nil
}
