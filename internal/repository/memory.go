package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dkarpov/fuelbot/internal/date"
	"github.com/dkarpov/fuelbot/internal/model"
	"github.com/dkarpov/fuelbot/internal/policy"
)

// Memory implements Ledger and Users over in-process maps. One mutex
// guards everything: callers only need "no two calls race", not
// throughput. Used by the service tests and useful for running the bot
// without a database.
type Memory struct {
	mu       sync.Mutex
	users    map[string]*model.User
	expenses []model.Expense
	nextID   int64
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*model.User),
		nextID: 1,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func inMonth(d time.Time, year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}

func (m *Memory) AddWithLimitCheck(_ context.Context, username string, txDate time.Time, amount, limit decimal.Decimal) (policy.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentTotal := m.monthlyTotalLocked(username, txDate.Year(), int(txDate.Month()))
	existing := m.recordForDateLocked(username, txDate)

	existingAmount := decimal.Zero
	if existing != nil {
		existingAmount = existing.Amount
	}

	decision := policy.Decide(currentTotal, existingAmount, amount, limit)
	if !decision.Accepted {
		return decision, nil
	}

	if existing != nil {
		existing.Amount = existing.Amount.Add(amount)
	} else {
		m.expenses = append(m.expenses, model.Expense{
			ID:       m.nextID,
			Username: username,
			TxDate:   txDate,
			Amount:   amount,
		})
		m.nextID++
	}
	return decision, nil
}

func (m *Memory) RecordForDate(_ context.Context, username string, txDate time.Time) (*model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e := m.recordForDateLocked(username, txDate); e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) Create(_ context.Context, username string, txDate time.Time, amount decimal.Decimal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordForDateLocked(username, txDate) != nil {
		return 0, ErrConflict
	}
	id := m.nextID
	m.nextID++
	m.expenses = append(m.expenses, model.Expense{
		ID:       id,
		Username: username,
		TxDate:   txDate,
		Amount:   amount,
	})
	return id, nil
}

func (m *Memory) UpdateAmount(_ context.Context, id int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.expenses {
		if m.expenses[i].ID == id {
			m.expenses[i].Amount = amount
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) MonthlyTotal(_ context.Context, username string, year, month int) (decimal.Decimal, error) {
	// bounds check mirrors the real store resolving month bounds
	date.MonthBounds(year, month)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monthlyTotalLocked(username, year, month), nil
}

func (m *Memory) MonthRecords(_ context.Context, username string, year, month int) ([]model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []model.Expense
	for _, e := range m.expenses {
		if e.Username == username && inMonth(e.TxDate, year, month) {
			records = append(records, e)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !sameDay(records[i].TxDate, records[j].TxDate) {
			return records[i].TxDate.Before(records[j].TxDate)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (m *Memory) DeleteMonthRecords(_ context.Context, username string, year, month int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		kept    []model.Expense
		deleted int64
	)
	for _, e := range m.expenses {
		if e.Username == username && inMonth(e.TxDate, year, month) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.expenses = kept
	return deleted, nil
}

func (m *Memory) DeleteLatestMonthRecord(_ context.Context, username string, year, month int) (*model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := -1
	for i, e := range m.expenses {
		if e.Username != username || !inMonth(e.TxDate, year, month) {
			continue
		}
		if latest == -1 {
			latest = i
			continue
		}
		l := m.expenses[latest]
		if e.TxDate.After(l.TxDate) || (sameDay(e.TxDate, l.TxDate) && e.ID > l.ID) {
			latest = i
		}
	}
	if latest == -1 {
		return nil, nil
	}
	deleted := m.expenses[latest]
	m.expenses = append(m.expenses[:latest], m.expenses[latest+1:]...)
	return &deleted, nil
}

func (m *Memory) YearTotals(_ context.Context, username string, year int) ([]model.MonthTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byMonth := make(map[int]decimal.Decimal)
	for _, e := range m.expenses {
		if e.Username == username && e.TxDate.Year() == year {
			month := int(e.TxDate.Month())
			byMonth[month] = byMonth[month].Add(e.Amount)
		}
	}

	var totals []model.MonthTotal
	for month, total := range byMonth {
		totals = append(totals, model.MonthTotal{Month: month, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Month < totals[j].Month })
	return totals, nil
}

func (m *Memory) CreateUser(_ context.Context, user *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Username]; ok {
		return false, nil
	}
	cp := *user
	m.users[user.Username] = &cp
	return true, nil
}

func (m *Memory) GetUser(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (m *Memory) UpdateUserLimit(_ context.Context, username string, limit decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.MonthlyLimit = limit
	return nil
}

func (m *Memory) AllChatIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]struct{})
	var chatIDs []int64
	for _, user := range m.users {
		if _, ok := seen[user.ChatID]; ok {
			continue
		}
		seen[user.ChatID] = struct{}{}
		chatIDs = append(chatIDs, user.ChatID)
	}
	return chatIDs, nil
}

func (m *Memory) recordForDateLocked(username string, txDate time.Time) *model.Expense {
	for i := range m.expenses {
		if m.expenses[i].Username == username && sameDay(m.expenses[i].TxDate, txDate) {
			return &m.expenses[i]
		}
	}
	return nil
}

func (m *Memory) monthlyTotalLocked(username string, year, month int) decimal.Decimal {
	total := decimal.Zero
	for _, e := range m.expenses {
		if e.Username == username && inMonth(e.TxDate, year, month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

var _ Ledger = (*Memory)(nil)
var _ Ledger = (*Postgres)(nil)
