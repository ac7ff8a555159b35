package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkarpov/fuelbot/internal/repository"
)

func TestRegister_NewUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	users := NewUser(repo, dec(t, "210.00"))

	created, err := users.Register(ctx, "alice", 12345)
	require.NoError(t, err)
	require.True(t, created)

	config, err := users.Config(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", config.Username)
	require.Equal(t, int64(12345), config.ChatID)
	require.True(t, config.MonthlyLimit.Equal(dec(t, "210.00")))
}

func TestRegister_RepeatIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	users := NewUser(repo, dec(t, "210.00"))

	created, err := users.Register(ctx, "bob", 100)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, users.UpdateLimit(ctx, "bob", dec(t, "300.00")))

	// re-registering with a different chat must not touch the account
	created, err = users.Register(ctx, "bob", 999)
	require.NoError(t, err)
	require.False(t, created)

	config, err := users.Config(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(100), config.ChatID)
	require.True(t, config.MonthlyLimit.Equal(dec(t, "300.00")))
}

func TestUpdateLimit_Validation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	users := NewUser(repo, dec(t, "210.00"))

	_, err := users.Register(ctx, "carol", 1)
	require.NoError(t, err)

	require.ErrorIs(t, users.UpdateLimit(ctx, "carol", dec(t, "0")), ErrInvalidInput)
	require.ErrorIs(t, users.UpdateLimit(ctx, "carol", dec(t, "-50")), ErrInvalidInput)

	// a failed update left the limit alone
	config, err := users.Config(ctx, "carol")
	require.NoError(t, err)
	require.True(t, config.MonthlyLimit.Equal(dec(t, "210.00")))
}

func TestUpdateLimit_UnknownUser(t *testing.T) {
	ctx := context.Background()
	users := NewUser(repository.NewMemory(), dec(t, "210.00"))

	require.ErrorIs(t, users.UpdateLimit(ctx, "ghost", dec(t, "100")), ErrUserNotFound)
}

func TestConfig_UnknownUser(t *testing.T) {
	ctx := context.Background()
	users := NewUser(repository.NewMemory(), dec(t, "210.00"))

	_, err := users.Config(ctx, "phantom")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestNotificationChatIDs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	users := NewUser(repo, dec(t, "210.00"))

	_, err := users.Register(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = users.Register(ctx, "bob", 2)
	require.NoError(t, err)

	chatIDs, err := users.NotificationChatIDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, chatIDs)
}
