package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func truncateExpenses(t *testing.T) {
	t.Helper()
	_, err := postgresPool.Exec(context.Background(), `TRUNCATE TABLE expenses`)
	require.NoError(t, err)
}

func TestLedgerPostgres_CreateAndRecordForDate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	id, err := repo.Create(ctx, "alice", day(15), dec(t, "45.50"))
	require.NoError(t, err)
	require.NotZero(t, id)

	expense, err := repo.RecordForDate(ctx, "alice", day(15))
	require.NoError(t, err)
	require.NotNil(t, expense)
	require.Equal(t, id, expense.ID)
	require.Equal(t, "2024-03-15", expense.TxDate.Format("2006-01-02"))
	require.True(t, expense.Amount.Equal(dec(t, "45.50")))

	// no record on another date
	expense, err = repo.RecordForDate(ctx, "alice", day(16))
	require.NoError(t, err)
	require.Nil(t, expense)
}

func TestLedgerPostgres_CreateConflictOnSameDay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	_, err := repo.Create(ctx, "alice", day(15), dec(t, "10"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, "alice", day(15), dec(t, "20"))
	require.ErrorIs(t, err, ErrConflict)

	// same date for another user is fine
	_, err = repo.Create(ctx, "bob", day(15), dec(t, "20"))
	require.NoError(t, err)
}

func TestLedgerPostgres_UpdateAmount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	id, err := repo.Create(ctx, "alice", day(15), dec(t, "10"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateAmount(ctx, id, dec(t, "30.50")))

	expense, err := repo.RecordForDate(ctx, "alice", day(15))
	require.NoError(t, err)
	require.True(t, expense.Amount.Equal(dec(t, "30.50")))

	require.ErrorIs(t, repo.UpdateAmount(ctx, id+1000, dec(t, "1")), ErrNotFound)
}

func TestLedgerPostgres_MonthlyTotal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	total, err := repo.MonthlyTotal(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.Zero))

	_, err = repo.Create(ctx, "alice", day(1), dec(t, "10.10"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", day(31), dec(t, "20.20"))
	require.NoError(t, err)
	// outside the month and another user, both excluded
	_, err = repo.Create(ctx, "alice", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), dec(t, "99"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "bob", day(2), dec(t, "99"))
	require.NoError(t, err)

	total, err = repo.MonthlyTotal(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.True(t, total.Equal(dec(t, "30.30")))
}

func TestLedgerPostgres_MonthRecordsOrdering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	for _, d := range []int{20, 3, 11} {
		_, err := repo.Create(ctx, "alice", day(d), dec(t, "1"))
		require.NoError(t, err)
	}

	records, err := repo.MonthRecords(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "2024-03-03", records[0].TxDate.Format("2006-01-02"))
	require.Equal(t, "2024-03-11", records[1].TxDate.Format("2006-01-02"))
	require.Equal(t, "2024-03-20", records[2].TxDate.Format("2006-01-02"))
}

func TestLedgerPostgres_DeleteMonthRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	_, err := repo.Create(ctx, "alice", day(1), dec(t, "10"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", day(2), dec(t, "20"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), dec(t, "30"))
	require.NoError(t, err)

	deleted, err := repo.DeleteMonthRecords(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	total, err := repo.MonthlyTotal(ctx, "alice", 2024, 2)
	require.NoError(t, err)
	require.True(t, total.Equal(dec(t, "30")))

	deleted, err = repo.DeleteMonthRecords(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)
}

func TestLedgerPostgres_DeleteLatestMonthRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	expense, err := repo.DeleteLatestMonthRecord(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Nil(t, expense)

	_, err = repo.Create(ctx, "alice", day(5), dec(t, "10"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", day(20), dec(t, "20"))
	require.NoError(t, err)

	expense, err = repo.DeleteLatestMonthRecord(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.NotNil(t, expense)
	require.Equal(t, "2024-03-20", expense.TxDate.Format("2006-01-02"))
	require.True(t, expense.Amount.Equal(dec(t, "20")))

	records, err := repo.MonthRecords(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestLedgerPostgres_YearTotals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	totals, err := repo.YearTotals(ctx, "alice", 2024)
	require.NoError(t, err)
	require.Empty(t, totals)

	_, err = repo.Create(ctx, "alice", time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC), dec(t, "30"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", day(10), dec(t, "20"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", day(11), dec(t, "30"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "alice", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), dec(t, "99"))
	require.NoError(t, err)

	totals, err = repo.YearTotals(ctx, "alice", 2024)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	require.Equal(t, 3, totals[0].Month)
	require.True(t, totals[0].Total.Equal(dec(t, "50")))
	require.Equal(t, 7, totals[1].Month)
	require.True(t, totals[1].Total.Equal(dec(t, "30")))
}

func TestLedgerPostgres_AddWithLimitCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	decision, err := repo.AddWithLimitCheck(ctx, "alice", day(15), dec(t, "45.50"), dec(t, "210.00"))
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	require.True(t, decision.NewTotal.Equal(dec(t, "45.50")))

	// same day merges into the one record
	decision, err = repo.AddWithLimitCheck(ctx, "alice", day(15), dec(t, "30"), dec(t, "210.00"))
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	require.True(t, decision.NewTotal.Equal(dec(t, "75.50")))

	records, err := repo.MonthRecords(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Amount.Equal(dec(t, "75.50")))

	// second call observes the first call's writes: 75.50 + 200 > 210
	decision, err = repo.AddWithLimitCheck(ctx, "alice", day(16), dec(t, "200"), dec(t, "210.00"))
	require.NoError(t, err)
	require.False(t, decision.Accepted)
	require.True(t, decision.Current.Equal(dec(t, "75.50")))

	// the rejected call wrote nothing
	total, err := repo.MonthlyTotal(ctx, "alice", 2024, 3)
	require.NoError(t, err)
	require.True(t, total.Equal(dec(t, "75.50")))
}

func TestLedgerPostgres_AddWithLimitCheckAtLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer truncateExpenses(t)

	decision, err := repo.AddWithLimitCheck(ctx, "alice", day(15), dec(t, "100.00"), dec(t, "100.00"))
	require.NoError(t, err)
	require.True(t, decision.Accepted)

	decision, err = repo.AddWithLimitCheck(ctx, "alice", day(16), dec(t, "0.01"), dec(t, "100.00"))
	require.NoError(t, err)
	require.False(t, decision.Accepted)
}
