package tgbot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// Sender adapts the Telegram API to the notifier's sending interface.
type Sender struct {
	client apiClient
}

// NewSender wraps an authorized API client.
func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{client: api}
}

// SendMessage delivers one plain-text message to a chat.
func (s *Sender) SendMessage(_ context.Context, chatID domain.TelegramID, text string) error {
	_, err := s.client.Send(tgbotapi.NewMessage(chatID.Int64(), text))
	return err
}
