package producer

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/dkarpov/fuelbot/internal/service"
)

// Notifier announces a new bot version to every registered chat once at
// startup. Send failures are logged per chat and never stop the rollout:
// a blocked user must not prevent notifying the rest.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	users   service.Users
	version string
}

func NewNotifier(bot *tgbotapi.BotAPI, users service.Users, version string) *Notifier {
	return &Notifier{
		bot:     bot,
		users:   users,
		version: version,
	}
}

func (n *Notifier) Produce(ctx context.Context) error {
	chatIDs, err := n.users.NotificationChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("producer.Notifier, couldn't get notification chats: %v", err)
	}

	text := fmt.Sprintf("🔄 Bot updated to version %s", n.version)
	for _, chatID := range chatIDs {
		if _, err = n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			logrus.Errorf("producer.Notifier, couldn't notify chat %d: %v", chatID, err)
			continue
		}
	}

	logrus.Infof("notifier sent version %s to %d chats", n.version, len(chatIDs))
	return nil
}
