package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// fakeClient is a scriptable in-memory Client. Tests push events; the worker
// polls them back out. All methods are mutex-guarded because the worker
// goroutine and the test goroutine both touch it.
type fakeClient struct {
	mu     sync.Mutex
	events []Event

	nextID       int32
	failDispatch bool
	connectErr   error
	// autoLogin makes Connect emit a connect-success event and Login emit a
	// logged-in event, so tests reach the logged-in state without scripting.
	autoLogin bool

	connected   bool
	connecting  bool
	connects    int
	disconnects int
	logins      int
	statusSets  int
	subscribes  int
	broadcasts  []string
	created     []NewAccount
	deleted     []string
	listCalls   int
	online      []domain.OnlineUser
}

func newFakeClient() *fakeClient {
	return &fakeClient{autoLogin: true}
}

func (f *fakeClient) push(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

// dropConnection simulates transport loss: the client reports disconnected
// and delivers a connection-lost event.
func (f *fakeClient) dropConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.events = append(f.events, Event{Kind: EventConnectionLost})
}

func (f *fakeClient) Connect(host string, tcpPort, udpPort int, encrypted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	if f.autoLogin {
		f.events = append(f.events, Event{Kind: EventConnectSuccess})
	}
	return nil
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeClient) Login(nickname, username, password, clientName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.autoLogin {
		f.events = append(f.events, Event{Kind: EventLoggedIn})
	}
}

func (f *fakeClient) SetStatus(gender, statusText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusSets++
}

func (f *fakeClient) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
}

func (f *fakeClient) SendBroadcast(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, text)
}

func (f *fakeClient) CreateAccount(acc NewAccount) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDispatch {
		return 0
	}
	f.nextID++
	f.created = append(f.created, acc)
	return f.nextID
}

func (f *fakeClient) DeleteAccount(username string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDispatch {
		return 0
	}
	f.nextID++
	f.deleted = append(f.deleted, username)
	return f.nextID
}

func (f *fakeClient) ListAccounts(offset, limit int) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDispatch {
		return 0
	}
	f.nextID++
	f.listCalls++
	return f.nextID
}

func (f *fakeClient) OnlineUsers() []domain.OnlineUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeClient) PollEvent() (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return Event{}, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) IsConnecting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connecting
}

func (f *fakeClient) lastID() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID
}

func (f *fakeClient) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeClient) createdAccounts() []NewAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NewAccount(nil), f.created...)
}

func (f *fakeClient) deletedUsernames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeClient) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeClient) broadcastsSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.broadcasts...)
}

func (f *fakeClient) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// recordingNotifier captures lifecycle notifications for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	created []string
	changed []string
	removed []string
	banned  []bannedNotification
	noLink  []string
}

type bannedNotification struct {
	username   string
	registrant domain.TelegramID
}

func (n *recordingNotifier) AccountCreated(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, username)
}

func (n *recordingNotifier) AccountChanged(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, username)
}

func (n *recordingNotifier) AccountRemoved(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, username)
}

func (n *recordingNotifier) AccountRemovedBanned(_ context.Context, username string, registrant domain.TelegramID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.banned = append(n.banned, bannedNotification{username: username, registrant: registrant})
}

func (n *recordingNotifier) AccountRemovedNoLink(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.noLink = append(n.noLink, username)
}

func (n *recordingNotifier) snapshot() (created, changed, removed, noLink []string, banned []bannedNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.created...),
		append([]string(nil), n.changed...),
		append([]string(nil), n.removed...),
		append([]string(nil), n.noLink...),
		append([]bannedNotification(nil), n.banned...)
}

// stubRegistry answers lookups with fixed data and records bans.
type stubRegistry struct {
	mu         sync.Mutex
	registrant domain.TelegramID
	found      bool
	findErr    error
	banErr     error
	bans       []banRecord
}

type banRecord struct {
	registrant domain.TelegramID
	username   string
	reason     string
}

func (r *stubRegistry) FindByVoiceUsername(_ context.Context, _ string) (domain.TelegramID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registrant, r.found, r.findErr
}

func (r *stubRegistry) Ban(_ context.Context, registrant domain.TelegramID, username, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans = append(r.bans, banRecord{registrant: registrant, username: username, reason: reason})
	return r.banErr
}

func (r *stubRegistry) banRecords() []banRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]banRecord(nil), r.bans...)
}

var errConnectRefused = errors.New("connection refused")

func mustUsername(t *testing.T, value string) domain.Username {
	t.Helper()
	u, err := domain.ParseUsername(value)
	require.NoError(t, err)
	return u
}

func mustPassword(t *testing.T, value string) domain.Password {
	t.Helper()
	p, err := domain.ParsePassword(value)
	require.NoError(t, err)
	return p
}

func mustNickname(t *testing.T, value string) domain.Nickname {
	t.Helper()
	n, err := domain.ParseNickname(value)
	require.NoError(t, err)
	return n
}
