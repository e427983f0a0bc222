package notify

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/watchtracker/internal/config"
)

// botSender is the part of *tgbotapi.BotAPI used here.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to a chat through a bot.
type Telegram struct {
	cfg config.TelegramConfig

	mu     sync.Mutex
	bot    botSender
	newBot func(token string) (botSender, error)
}

// NewTelegram creates a Telegram notifier. The bot is authorized on first use.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		cfg: cfg,
		newBot: func(token string) (botSender, error) {
			bot, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return nil, err
			}
			return bot, nil
		},
	}
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}

	parts := renderTelegram(n)
	for i, text := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.cfg.ChatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := bot.Send(msg); err != nil {
			return eris.Wrapf(err, "telegram: send part %d/%d", i+1, len(parts))
		}
	}
	return nil
}

func (t *Telegram) client() (botSender, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := t.newBot(t.cfg.Token)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: authorize bot")
	}
	t.bot = bot
	return bot, nil
}
