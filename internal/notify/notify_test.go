package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/i18n"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/notify"
)

type recordedMessage struct {
	chatID domain.TelegramID
	text   string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []recordedMessage
	failFor  map[domain.TelegramID]error
}

func (s *fakeSender) SendMessage(_ context.Context, chatID domain.TelegramID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[chatID]; ok {
		return err
	}
	s.messages = append(s.messages, recordedMessage{chatID: chatID, text: text})
	return nil
}

func (s *fakeSender) sent() []recordedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedMessage(nil), s.messages...)
}

func newNotifier(t *testing.T, sender *fakeSender, admins ...domain.TelegramID) *notify.AdminNotifier {
	t.Helper()
	bundle, err := i18n.New()
	require.NoError(t, err)
	return notify.NewAdminNotifier(sender, bundle, admins, "en")
}

func TestAdminNotifierDeliversToAllAdmins(t *testing.T) {
	sender := &fakeSender{}
	n := newNotifier(t, sender, 1, 2)

	n.AccountCreated(context.Background(), "alice")

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, domain.TelegramID(1), sent[0].chatID)
	assert.Equal(t, domain.TelegramID(2), sent[1].chatID)
	assert.Contains(t, sent[0].text, `"alice"`)
}

func TestAdminNotifierSubstitutesBanDetails(t *testing.T) {
	sender := &fakeSender{}
	n := newNotifier(t, sender, 1)

	n.AccountRemovedBanned(context.Background(), "alice", 101)

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "alice")
	assert.Contains(t, sent[0].text, "101")
}

func TestAdminNotifierSkipsFailedRecipients(t *testing.T) {
	sender := &fakeSender{failFor: map[domain.TelegramID]error{
		1: errors.New("blocked by user"),
	}}
	n := newNotifier(t, sender, 1, 2)

	n.AccountRemoved(context.Background(), "alice")

	// The failure on the first admin must not stop delivery to the second.
	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TelegramID(2), sent[0].chatID)
}
