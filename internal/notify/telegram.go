package notify

import (
	"fmt"
	"log"

	"gamekey-market-api/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts sale and payout notifications to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier from a bot token and target chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Attach subscribes the notifier to sale and payout events.
func (n *TelegramNotifier) Attach(emitter *events.Emitter) {
	emitter.Subscribe(events.EventKeySold, func(ev events.Event) {
		n.send(fmt.Sprintf("Key sold: game %v for %v (seller %v)",
			ev.Data["game_id"], ev.Data["price"], ev.Data["seller"]))
	})
	emitter.Subscribe(events.EventPayoutSent, func(ev events.Event) {
		n.send(fmt.Sprintf("Payout sent: %v to %v", ev.Data["amount"], ev.Data["account"]))
	})
	emitter.Subscribe(events.EventPayoutFailed, func(ev events.Event) {
		n.send(fmt.Sprintf("Payout FAILED: %v to %v (balance restored)",
			ev.Data["amount"], ev.Data["account"]))
	})
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		log.Printf("[notify] telegram send failed: %v", err)
	}
}
