package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carsharing/backend/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const greetingMessage = "👋 Welcome to the Car Sharing Notification Bot!\n\n" +
	"This bot is here to send you important updates about your rentals.\n\n" +
	"If you need assistance, contact our support team.\n\n" +
	"Thank you for using our service!"

// Bot is the part of the Telegram Bot API the notifier and poller use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// ChatDirectory resolves a user to their linked Telegram chat.
type ChatDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// NewBot connects to the Telegram Bot API. Every request is bounded by
// timeout.
func NewBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	return bot, nil
}

// TelegramNotifier sends messages to the chat a user linked to their account.
type TelegramNotifier struct {
	bot   Bot
	chats ChatDirectory
}

func NewTelegramNotifier(bot Bot, chats ChatDirectory) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chats: chats}
}

func (n *TelegramNotifier) Notify(ctx context.Context, userID, message string) error {
	user, err := n.chats.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve telegram chat: %w", err)
	}
	if user == nil || user.TelegramChatID == nil {
		return fmt.Errorf("telegram chat id not set for user %s: %w", userID, ErrNoChannel)
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(*user.TelegramChatID, message)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// GreetingPoller answers /start with a welcome message so new users learn
// their chat id is known to the bot.
type GreetingPoller struct {
	bot      Bot
	interval time.Duration
	logger   *slog.Logger
	offset   int
}

func NewGreetingPoller(bot Bot, interval time.Duration, logger *slog.Logger) *GreetingPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &GreetingPoller{bot: bot, interval: interval, logger: logger}
}

// Start polls in a background goroutine until ctx is cancelled.
func (p *GreetingPoller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll()
			}
		}
	}()
}

// Poll fetches pending updates once and greets every /start. Errors are
// logged and the next tick retries from the same offset.
func (p *GreetingPoller) Poll() {
	updates, err := p.bot.GetUpdates(tgbotapi.NewUpdate(p.offset + 1))
	if err != nil {
		p.logger.Warn("telegram poll failed", "error", err)
		return
	}

	for _, u := range updates {
		if u.UpdateID > p.offset {
			p.offset = u.UpdateID
		}
		if u.Message == nil || u.Message.Chat == nil || !strings.EqualFold(strings.TrimSpace(u.Message.Text), "/start") {
			continue
		}
		chatID := u.Message.Chat.ID
		if _, err := p.bot.Send(tgbotapi.NewMessage(chatID, greetingMessage)); err != nil {
			p.logger.Warn("telegram greeting failed", "chat_id", chatID, "error", err)
		}
	}
}
