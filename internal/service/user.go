package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dkarpov/fuelbot/internal/model"
	"github.com/dkarpov/fuelbot/internal/repository"
)

type Users interface {
	Register(ctx context.Context, username string, chatID int64) (created bool, err error)
	UpdateLimit(ctx context.Context, username string, newLimit decimal.Decimal) error
	Config(ctx context.Context, username string) (*model.User, error)
	NotificationChatIDs(ctx context.Context) ([]int64, error)
}

type User struct {
	users        repository.Users
	defaultLimit decimal.Decimal
}

func NewUser(users repository.Users, defaultLimit decimal.Decimal) *User {
	return &User{
		users:        users,
		defaultLimit: defaultLimit,
	}
}

// Register creates the user with the default monthly limit and reports
// whether a new account was created. Repeat registrations are a no-op:
// the stored chat ID and limit stay as they were.
func (u *User) Register(ctx context.Context, username string, chatID int64) (bool, error) {
	created, err := u.users.CreateUser(ctx, &model.User{
		Username:     username,
		ChatID:       chatID,
		MonthlyLimit: u.defaultLimit,
	})
	if err != nil {
		logrus.Errorf("service.User, register %s: %v", username, err)
		return false, ErrStorage
	}
	return created, nil
}

func (u *User) UpdateLimit(ctx context.Context, username string, newLimit decimal.Decimal) error {
	if newLimit.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: limit must be positive, got %s", ErrInvalidInput, newLimit)
	}

	err := u.users.UpdateUserLimit(ctx, username, newLimit)
	if errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		logrus.Errorf("service.User, update limit for %s: %v", username, err)
		return ErrStorage
	}
	return nil
}

func (u *User) Config(ctx context.Context, username string) (*model.User, error) {
	user, err := u.users.GetUser(ctx, username)
	if err != nil {
		logrus.Errorf("service.User, get config for %s: %v", username, err)
		return nil, ErrStorage
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return user, nil
}

// NotificationChatIDs lists every registered chat, for the startup
// notifier.
func (u *User) NotificationChatIDs(ctx context.Context) ([]int64, error) {
	chatIDs, err := u.users.AllChatIDs(ctx)
	if err != nil {
		logrus.Errorf("service.User, notification chat ids: %v", err)
		return nil, ErrStorage
	}
	return chatIDs, nil
}

var _ Users = (*User)(nil)
