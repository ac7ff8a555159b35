package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"github.com/dkarpov/fuelbot/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

//go:generate mockery --name=Users

// Users is the per-user config registry: registration identity, chat
// destination and the monthly limit.
type Users interface {
	CreateUser(ctx context.Context, user *model.User) (bool, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	UpdateUserLimit(ctx context.Context, username string, limit decimal.Decimal) error
	AllChatIDs(ctx context.Context) ([]int64, error)
}

// CreateUser inserts the user and reports whether a row was created. A repeat
// registration is not an error: it returns false and leaves the existing
// row, including its chat ID and limit, unchanged.
func (p *Postgres) CreateUser(ctx context.Context, user *model.User) (bool, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := `INSERT INTO users (username, chat_id, monthly_limit) VALUES ($1, $2, $3::numeric) ON CONFLICT DO NOTHING`
	commandTag, err := p.conn.Exec(ctx, query, user.Username, user.ChatID, user.MonthlyLimit.String())
	if err != nil {
		return false, fmt.Errorf("repository.Users, create user error: %v", err)
	}
	return commandTag.RowsAffected() == 1, nil
}

func (p *Postgres) GetUser(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := `SELECT username, chat_id, monthly_limit::text FROM users WHERE username=$1`
	var (
		user     model.User
		limitStr string
	)
	err := p.conn.QueryRow(ctx, query, username).Scan(&user.Username, &user.ChatID, &limitStr)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository.Users, get user error: %v", err)
	}
	if user.MonthlyLimit, err = decimal.NewFromString(limitStr); err != nil {
		return nil, fmt.Errorf("repository.Users, bad limit %q: %v", limitStr, err)
	}
	return &user, nil
}

func (p *Postgres) UpdateUserLimit(ctx context.Context, username string, limit decimal.Decimal) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	commandTag, err := p.conn.Exec(ctx, `UPDATE users SET monthly_limit=$1::numeric WHERE username=$2`,
		limit.String(), username)
	if err != nil {
		return fmt.Errorf("repository.Users, update limit error: %v", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *Postgres) AllChatIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	rows, err := p.conn.Query(ctx, `SELECT DISTINCT chat_id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("repository.Users, all chat ids error: %v", err)
	}
	defer rows.Close()

	var chatIDs []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("repository.Users, scan chat id error: %v", err)
		}
		chatIDs = append(chatIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Users, all chat ids rows error: %v", err)
	}
	return chatIDs, nil
}

var _ Users = (*Postgres)(nil)
var _ Users = (*Memory)(nil)
