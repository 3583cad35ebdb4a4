package tgbot

import (
	"sync"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// dialogState is the position of one chat inside the registration dialogue.
type dialogState int

const (
	stateIdle dialogState = iota
	stateChoosingLanguage
	stateAwaitingUsername
	stateAwaitingPassword
	stateAwaitingNicknameChoice
	stateAwaitingNickname
	stateAwaitingAccountType
)

// session is the per-chat dialogue state. Collected credentials live here
// until the final registration step submits them.
type session struct {
	state dialogState
	lang  domain.LanguageCode

	username domain.Username
	password domain.Password
	nickname domain.Nickname

	// suggestedNickname is the registrant's Telegram display name offered
	// during the nickname step.
	suggestedNickname string

	// deeplinkToken is set when the dialogue was started through an
	// invitation link; it is consumed on successful registration.
	deeplinkToken string
}

// sessionStore keeps dialogue state per chat, safe for the handler
// goroutine and notification callbacks.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

// get returns the session for a chat, creating an idle one on first use.
func (s *sessionStore) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{lang: domain.DefaultLanguage}
		s.sessions[chatID] = sess
	}
	return sess
}

// reset drops the dialogue back to idle, keeping the chosen language.
func (s *sessionStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		lang := sess.lang
		s.sessions[chatID] = &session{lang: lang}
	}
}
