// Package notify delivers batch job reports to operators.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends a short plain-text report.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop logs the report instead of sending it.
type Noop struct{}

func (Noop) Notify(ctx context.Context, text string) error {
	log.Printf("Report (not sent, no notifier configured):\n%s", text)
	return nil
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts reports to one chat.
type Telegram struct {
	api    sender
	chatID int64
}

// NewTelegram authorizes the bot token. Reports go to chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Printf("Authorized on account %s", bot.Self.UserName)
	return &Telegram{api: bot, chatID: chatID}, nil
}

// New returns a Telegram notifier when both token and chat are set, and Noop
// otherwise or when the bot cannot be reached.
func New(token string, chatID int64) Notifier {
	if token == "" || chatID == 0 {
		return Noop{}
	}
	t, err := NewTelegram(token, chatID)
	if err != nil {
		log.Printf("Telegram reports disabled: %v", err)
		return Noop{}
	}
	return t
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, format(text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram report: %w", err)
	}
	return nil
}

// format bolds the first line and escapes the rest, so source names such as
// korean_seed survive Markdown parsing.
func format(text string) string {
	head, body, _ := strings.Cut(strings.TrimSpace(text), "\n")
	var sb strings.Builder
	sb.WriteString("📦 *")
	sb.WriteString(tgbotapi.EscapeText(tgbotapi.ModeMarkdown, head))
	sb.WriteString("*")
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		sb.WriteString("\n• ")
		sb.WriteString(tgbotapi.EscapeText(tgbotapi.ModeMarkdown, line))
	}
	return sb.String()
}
