// Package consumer drives the Telegram side of the bot: it receives
// updates, parses commands and amounts, calls the services and formats
// the replies. All business rules live in the services.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dkarpov/fuelbot/internal/service"
)

const (
	startCommand       = "start"
	checkCommand       = "check"
	configCommand      = "config"
	listMonthCommand   = "list_month"
	yearSummaryCommand = "year_summary"
	clearMonthCommand  = "clear_month"
	removeLastCommand  = "remove_last"
)

const configUsage = "Usage: /config limit <amount>\n\nExample: /config limit 250.00"

// Bot polls the telegram server and handles one update at a time. Every
// message carries the username, so no per-chat state is kept here.
type Bot struct {
	bot         *tgbotapi.BotAPI
	updatesChan tgbotapi.UpdatesChannel
	validator   *validator.Validate
	expenses    service.Expenses
	users       service.Users
	timeout     time.Duration
}

func NewBot(bot *tgbotapi.BotAPI, updatesChan tgbotapi.UpdatesChannel, validator *validator.Validate,
	expenses service.Expenses, users service.Users, timeout time.Duration) *Bot {
	return &Bot{
		bot:         bot,
		updatesChan: updatesChan,
		validator:   validator,
		expenses:    expenses,
		users:       users,
		timeout:     timeout,
	}
}

func (b *Bot) Consume(ctx context.Context) {
	logrus.Infof("telegram bot %s started consuming", b.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("bot consumer stopped: %v", ctx.Err())
			return
		case update := <-b.updatesChan:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	username := message.From.UserName
	if err := b.validator.Var(username, "required"); err != nil {
		logrus.Infof("message without username from chat %d", message.Chat.ID)
		b.reply(message, "❌ You need a Telegram username to use this bot. Please set one in your Telegram settings.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if message.IsCommand() {
		logrus.Infof("received /%s from %s, chat %d", message.Command(), username, message.Chat.ID)
		switch message.Command() {
		case startCommand:
			b.handleStart(ctx, message, username)
		case checkCommand:
			b.handleCheck(ctx, message, username)
		case configCommand:
			b.handleConfig(ctx, message, username)
		case listMonthCommand:
			b.handleListMonth(ctx, message, username)
		case yearSummaryCommand:
			b.handleYearSummary(ctx, message, username)
		case clearMonthCommand:
			b.handleClearMonth(ctx, message, username)
		case removeLastCommand:
			b.handleRemoveLast(ctx, message, username)
		default:
			logrus.Infof("unknown command: %s", message.Text)
			b.reply(message, "Unknown command. Send a number to record a fuel expense or use /check, /config, /list_month, /year_summary, /clear_month, /remove_last.")
		}
		return
	}

	b.handleAmount(ctx, message, username)
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message, username string) {
	created, err := b.users.Register(ctx, username, message.Chat.ID)
	if err != nil {
		b.replyError(message, err)
		return
	}

	if created {
		b.reply(message, fmt.Sprintf(
			"Welcome, %s! 🚗\n\nYou are registered. Send me a number to record a fuel expense.\nUse /check to see your monthly summary.\nUse /config limit <amount> to change your monthly limit.",
			username))
		return
	}
	b.reply(message, fmt.Sprintf(
		"Welcome back, %s! 👋\n\nYou are already registered.\nSend me a number to record a fuel expense or use /check to see your summary.",
		username))
}

func (b *Bot) handleCheck(ctx context.Context, message *tgbotapi.Message, username string) {
	summary, err := b.expenses.MonthlySummary(ctx, username)
	if err != nil {
		b.replyError(message, err)
		return
	}

	b.reply(message, fmt.Sprintf(
		"📊 Monthly Summary\n\n💸 Spent: €%s\n🎯 Limit: €%s\n✅ Remaining: €%s",
		summary.TotalSpent.StringFixed(2), summary.Limit.StringFixed(2), summary.Remaining.StringFixed(2)))
}

func (b *Bot) handleConfig(ctx context.Context, message *tgbotapi.Message, username string) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 || !strings.EqualFold(args[0], "limit") {
		b.reply(message, configUsage)
		return
	}

	newLimit, err := parseAmount(b.validator, args[1])
	if err != nil {
		b.reply(message, fmt.Sprintf(
			"❌ Invalid amount: '%s'\n\nPlease provide a positive number.\nExample: /config limit 250.00", args[1]))
		return
	}

	if err = b.users.UpdateLimit(ctx, username, newLimit); err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("✅ Monthly limit updated!\n\nYour new limit is €%s", newLimit.StringFixed(2)))
}

func (b *Bot) handleAmount(ctx context.Context, message *tgbotapi.Message, username string) {
	amount, err := parseAmount(b.validator, message.Text)
	if err != nil {
		b.reply(message, fmt.Sprintf(
			"❌ Invalid amount: '%s'\n\nSend a positive number to record a fuel expense, e.g. 45.50", message.Text))
		return
	}

	result, err := b.expenses.AddExpense(ctx, username, amount)
	if err != nil {
		b.replyError(message, err)
		return
	}

	if result.Accepted {
		b.reply(message, fmt.Sprintf(
			"✅ Expense recorded: €%s\n\n📊 Monthly total: €%s\n💰 Remaining budget: €%s",
			amount.StringFixed(2), result.NewTotal.StringFixed(2), result.Remaining.StringFixed(2)))
		logrus.Infof("%s added expense: %s", username, amount.StringFixed(2))
		return
	}
	b.reply(message, fmt.Sprintf(
		"❌ Expense rejected!\n\nCurrent total: €%s\nAttempted: €%s\nMonthly limit: €%s\n\nYou can increase your limit with /config limit <amount>",
		result.Current.StringFixed(2), result.Attempted.StringFixed(2), result.Limit.StringFixed(2)))
}

func (b *Bot) handleListMonth(ctx context.Context, message *tgbotapi.Message, username string) {
	records, err := b.expenses.ListMonth(ctx, username)
	if err != nil {
		b.replyError(message, err)
		return
	}

	if len(records) == 0 {
		b.reply(message, "No expenses recorded this month.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🧾 This month's expenses:\n\n")
	for _, record := range records {
		sb.WriteString(fmt.Sprintf("%s — €%s\n", record.TxDate.Format("2006-01-02"), record.Amount.StringFixed(2)))
	}
	b.reply(message, sb.String())
}

func (b *Bot) handleYearSummary(ctx context.Context, message *tgbotapi.Message, username string) {
	summary, err := b.expenses.YearSummary(ctx, username)
	if err != nil {
		b.replyError(message, err)
		return
	}

	if len(summary.Months) == 0 {
		b.reply(message, fmt.Sprintf("No expenses recorded in %d.", summary.Year))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 %d summary:\n\n", summary.Year))
	for _, mt := range summary.Months {
		sb.WriteString(fmt.Sprintf("%s: €%s\n", service.MonthName(mt.Month), mt.Total.StringFixed(2)))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: €%s", summary.GrandTotal.StringFixed(2)))
	b.reply(message, sb.String())
}

func (b *Bot) handleClearMonth(ctx context.Context, message *tgbotapi.Message, username string) {
	deleted, err := b.expenses.ClearMonth(ctx, username)
	if err != nil {
		b.replyError(message, err)
		return
	}
	b.reply(message, fmt.Sprintf("🗑 Deleted %d expense(s) from the current month.", deleted))
}

func (b *Bot) handleRemoveLast(ctx context.Context, message *tgbotapi.Message, username string) {
	removed, err := b.expenses.RemoveLast(ctx, username)
	if err != nil {
		b.replyError(message, err)
		return
	}

	if removed == nil {
		b.reply(message, "No expenses to remove this month.")
		return
	}
	b.reply(message, fmt.Sprintf("↩️ Removed last expense: €%s on %s",
		removed.Amount.StringFixed(2), removed.TxDate.Format("2006-01-02")))
}

// parseAmount accepts a plain positive number with dot or comma decimals.
func parseAmount(validate *validator.Validate, text string) (decimal.Decimal, error) {
	text = strings.Replace(strings.TrimSpace(text), ",", ".", 1)
	if err := validate.Var(text, "required,numeric"); err != nil {
		return decimal.Decimal{}, fmt.Errorf("consumer.Bot, not a number: %q", text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("consumer.Bot, parse amount %q: %v", text, err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, fmt.Errorf("consumer.Bot, amount must be positive: %q", text)
	}
	return amount, nil
}

func (b *Bot) replyError(message *tgbotapi.Message, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		b.reply(message, "❌ You need to register first. Please use /start to register.")
	case errors.Is(err, service.ErrInvalidInput):
		b.reply(message, fmt.Sprintf("❌ Invalid input: %v", err))
	default:
		b.reply(message, "⚠️ Unable to process your request right now. Please try again in a moment.")
	}
}

func (b *Bot) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID

	if _, err := b.bot.Send(msg); err != nil {
		logrus.Errorf("consumer.Bot, telegram bot couldn't send message: %v", err)
	}
}
