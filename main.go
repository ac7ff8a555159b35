package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dkarpov/fuelbot/internal/config"
	"github.com/dkarpov/fuelbot/internal/consumer"
	"github.com/dkarpov/fuelbot/internal/date"
	"github.com/dkarpov/fuelbot/internal/producer"
	"github.com/dkarpov/fuelbot/internal/repository"
	"github.com/dkarpov/fuelbot/internal/service"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found")
	}

	cfg := config.Config{}
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("couldn't parse config: %v", err)
	}

	defaultLimit, err := decimal.NewFromString(cfg.DefaultLimit)
	if err != nil || defaultLimit.LessThanOrEqual(decimal.Zero) {
		logrus.Fatalf("DEFAULT_LIMIT must be a positive number, got %q", cfg.DefaultLimit)
	}

	clock, err := date.NewClock(cfg.Timezone)
	if err != nil {
		logrus.Fatal(err)
	}

	if err = repository.RunMigrations(cfg.PostgresEndpoint); err != nil {
		logrus.Fatalf("couldn't run migrations: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, cfg.PostgresEndpoint)
	if err != nil {
		logrus.Fatalf("couldn't connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := repository.NewPostgres(pool, time.Duration(cfg.StorageTimeout)*time.Second)
	userService := service.NewUser(repo, defaultLimit)
	expenseService := service.NewExpense(repo, repo, clock)

	bot, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
	if err != nil {
		logrus.Fatal(err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = cfg.Telegram.Timeout
	updatesChan := bot.GetUpdatesChan(updateConfig)

	tgBot := consumer.NewBot(bot, updatesChan, validator.New(), expenseService, userService,
		time.Duration(cfg.StorageTimeout)*time.Second)
	notifier := producer.NewNotifier(bot, userService, version)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return notifier.Produce(groupCtx)
	})
	group.Go(func() error {
		tgBot.Consume(groupCtx)
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	cancel()

	if err = group.Wait(); err != nil {
		logrus.Error(err)
	}
	<-time.After(2 * time.Second)
}
