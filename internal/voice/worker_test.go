package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Host:       "voice.example.org",
		TCPPort:    10333,
		UDPPort:    10333,
		Nickname:   "RegBot",
		Username:   "regbot",
		Password:   "secret",
		ClientName: "ttreg",
		Rights:     0x1401,

		CommandWait:     2 * time.Millisecond,
		ListGrace:       10 * time.Millisecond,
		RemovalDebounce: 25 * time.Millisecond,
		// Keep automatic reconnection out of the way unless a test wants it.
		ReconnectInitialDelay: time.Hour,
		ReconnectMaxDelay:     time.Hour,
	}
}

type workerHarness struct {
	client   *fakeClient
	queue    Queue
	notifier *recordingNotifier
	registry *stubRegistry
	runErr   chan error
	done     chan struct{}
	cancel   context.CancelFunc
}

func startWorker(t *testing.T, client *fakeClient, cfg WorkerConfig, registry *stubRegistry) *workerHarness {
	t.Helper()

	h := &workerHarness{
		client:   client,
		queue:    make(Queue, 16),
		notifier: &recordingNotifier{},
		registry: registry,
		runErr:   make(chan error, 1),
		done:     make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	w := NewWorker(cfg, client, h.queue, h.notifier, h.registry)
	go func() {
		h.runErr <- w.Run(ctx)
		close(h.done)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop on context cancellation")
		}
	})
	return h
}

func eventually(t *testing.T, check func() bool, msg string) {
	t.Helper()
	require.Eventually(t, check, 2*time.Second, time.Millisecond, msg)
}

func testCreateParams(t *testing.T) CreateAccountParams {
	t.Helper()
	return CreateAccountParams{
		Username:    mustUsername(t, "alice"),
		Password:    mustPassword(t, "hunter2"),
		Nickname:    mustNickname(t, "Alice"),
		AccountType: domain.AccountDefault,
		Source:      domain.SourceTelegram(101),
	}
}

func TestWorkerCreateAccountConfirmedByServer(t *testing.T) {
	client := newFakeClient()
	cfg := testWorkerConfig()
	cfg.BroadcastTemplate = "New user {username} just registered!"
	h := startWorker(t, client, cfg, &stubRegistry{})

	result := make(chan error, 1)
	go func() {
		result <- h.queue.CreateAccount(context.Background(), testCreateParams(t))
	}()

	eventually(t, func() bool { return client.createdCount() == 1 }, "create account never dispatched")
	client.push(Event{Kind: EventCommandSuccess, CommandID: client.lastID()})

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("create account did not resolve")
	}

	accounts := client.createdAccounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.Equal(t, UserTypeDefault, accounts[0].UserType)
	assert.Equal(t, uint32(0x1401), accounts[0].Rights)
	assert.Equal(t, "Reg via Bot (Telegram ID: 101), nick=Alice", accounts[0].Note)
	assert.Equal(t, []string{"New user alice just registered!"}, client.broadcastsSent())
}

func TestWorkerCreateAccountRejectedByServer(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	result := make(chan error, 1)
	go func() {
		result <- h.queue.CreateAccount(context.Background(), testCreateParams(t))
	}()

	eventually(t, func() bool { return client.createdCount() == 1 }, "create account never dispatched")
	client.push(Event{
		Kind:      EventCommandError,
		CommandID: client.lastID(),
		Error:     &ServerError{Code: 2011, Message: "account already exists"},
	})

	err := <-result
	require.Error(t, err)
	assert.True(t, IsServerRejected(err))

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, int32(2011), serverErr.Code)
}

func TestWorkerDeleteUserConfirmedByServer(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	result := make(chan error, 1)
	go func() {
		result <- h.queue.DeleteUser(context.Background(), mustUsername(t, "bob"))
	}()

	eventually(t, func() bool { return len(client.deletedUsernames()) == 1 }, "delete never dispatched")
	client.push(Event{Kind: EventCommandSuccess, CommandID: client.lastID()})

	require.NoError(t, <-result)
	assert.Equal(t, []string{"bob"}, client.deletedUsernames())
}

func TestWorkerDispatchFailureResolvesImmediately(t *testing.T) {
	client := newFakeClient()
	client.failDispatch = true
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := h.queue.CreateAccount(ctx, testCreateParams(t))
	assert.ErrorIs(t, err, ErrDispatchFailed)

	err = h.queue.DeleteUser(ctx, mustUsername(t, "bob"))
	assert.ErrorIs(t, err, ErrDispatchFailed)

	users, err := h.queue.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	exists, err := h.queue.CheckUserExists(ctx, mustUsername(t, "bob"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWorkerRejectsCommandsWhileDisconnected(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errConnectRefused
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := h.queue.CreateAccount(ctx, testCreateParams(t))
	assert.ErrorIs(t, err, ErrNotConnected)

	exists, err := h.queue.CheckUserExists(ctx, mustUsername(t, "alice"))
	require.NoError(t, err)
	assert.False(t, exists)

	users, err := h.queue.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	online, err := h.queue.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)
}

func TestWorkerAccountListAggregation(t *testing.T) {
	client := newFakeClient()
	client.nextID = 41 // the enumeration below runs as command id 42
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	result := make(chan []string, 1)
	go func() {
		users, err := h.queue.GetAllUsers(context.Background())
		require.NoError(t, err)
		result <- users
	}()

	eventually(t, func() bool { return client.listCallCount() == 1 }, "list never dispatched")
	id := client.lastID()
	require.Equal(t, int32(42), id)

	client.push(Event{Kind: EventAccountListItem, CommandID: id, Username: "x"})
	client.push(Event{Kind: EventAccountListItem, CommandID: id, Username: "y"})
	client.push(Event{Kind: EventCommandSuccess, CommandID: id})

	select {
	case users := <-result:
		assert.Equal(t, []string{"x", "y"}, users)
	case <-time.After(2 * time.Second):
		t.Fatal("account list did not resolve after the grace window")
	}
}

func TestWorkerCheckUserExists(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	result := make(chan bool, 1)
	go func() {
		exists, err := h.queue.CheckUserExists(context.Background(), mustUsername(t, "alice"))
		require.NoError(t, err)
		result <- exists
	}()

	eventually(t, func() bool { return client.listCallCount() == 1 }, "list never dispatched")
	id := client.lastID()
	client.push(Event{Kind: EventAccountListItem, CommandID: id, Username: "bob"})
	client.push(Event{Kind: EventAccountListItem, CommandID: id, Username: "alice"})
	client.push(Event{Kind: EventCommandSuccess, CommandID: id})

	select {
	case exists := <-result:
		assert.True(t, exists)
	case <-time.After(2 * time.Second):
		t.Fatal("existence check did not resolve")
	}
}

func TestWorkerConnectionLossFailsAllPendingWork(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	createResult := make(chan error, 1)
	go func() {
		createResult <- h.queue.CreateAccount(context.Background(), testCreateParams(t))
	}()
	listResult := make(chan []string, 1)
	go func() {
		users, err := h.queue.GetAllUsers(context.Background())
		require.NoError(t, err)
		listResult <- users
	}()

	eventually(t, func() bool {
		return client.createdCount() == 1 && client.listCallCount() == 1
	}, "commands never dispatched")

	client.dropConnection()

	select {
	case err := <-createResult:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("pending create survived connection loss")
	}
	select {
	case users := <-listResult:
		assert.Empty(t, users)
	case <-time.After(2 * time.Second):
		t.Fatal("pending list survived connection loss")
	}
}

func TestWorkerReconnectsAfterBackoff(t *testing.T) {
	client := newFakeClient()
	cfg := testWorkerConfig()
	cfg.ReconnectInitialDelay = 5 * time.Millisecond
	cfg.ReconnectMaxDelay = 10 * time.Millisecond
	h := startWorker(t, client, cfg, &stubRegistry{})

	eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.logins == 1
	}, "initial login never happened")

	client.dropConnection()

	eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.connects >= 2 && client.logins >= 2
	}, "worker never reconnected")

	// The restored session accepts commands again.
	result := make(chan error, 1)
	go func() {
		result <- h.queue.DeleteUser(context.Background(), mustUsername(t, "bob"))
	}()
	eventually(t, func() bool { return len(client.deletedUsernames()) == 1 }, "delete never dispatched after reconnect")
	client.push(Event{Kind: EventCommandSuccess, CommandID: client.lastID()})
	require.NoError(t, <-result)
}

func TestWorkerDebouncedRemovalBansRegistrant(t *testing.T) {
	client := newFakeClient()
	registry := &stubRegistry{found: true, registrant: domain.TelegramID(202)}
	h := startWorker(t, client, testWorkerConfig(), registry)

	client.push(Event{Kind: EventAccountRemoved, Username: "alice"})

	eventually(t, func() bool {
		_, _, _, _, banned := h.notifier.snapshot()
		return len(banned) == 1
	}, "removal never finalized")

	bans := registry.banRecords()
	require.Len(t, bans, 1)
	assert.Equal(t, domain.TelegramID(202), bans[0].registrant)
	assert.Equal(t, "alice", bans[0].username)
	assert.Equal(t, BanReasonRemoved, bans[0].reason)
}

func TestWorkerRemovalFollowedByCreationReportsChange(t *testing.T) {
	client := newFakeClient()
	cfg := testWorkerConfig()
	cfg.RemovalDebounce = 250 * time.Millisecond
	h := startWorker(t, client, cfg, &stubRegistry{})

	client.push(Event{Kind: EventAccountRemoved, Username: "alice"})
	client.push(Event{Kind: EventAccountCreated, Username: "alice"})

	eventually(t, func() bool {
		_, changed, _, _, _ := h.notifier.snapshot()
		return len(changed) == 1
	}, "change notification never arrived")

	time.Sleep(2 * cfg.RemovalDebounce)
	created, changed, removed, _, _ := h.notifier.snapshot()
	assert.Empty(t, created)
	assert.Equal(t, []string{"alice"}, changed)
	assert.Empty(t, removed)
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	close(h.queue)

	select {
	case err := <-h.runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}
	assert.Equal(t, 1, client.disconnectCount())
}

func TestWorkerDisconnectsOnCancellation(t *testing.T) {
	client := newFakeClient()
	h := startWorker(t, client, testWorkerConfig(), &stubRegistry{})

	eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.logins == 1
	}, "login never happened")

	h.cancel()

	select {
	case err := <-h.runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
	assert.Equal(t, 1, client.disconnectCount())
}

func TestExpandBroadcast(t *testing.T) {
	tests := []struct {
		name     string
		template string
		username string
		want     string
	}{
		{"substitutes placeholder", "welcome {username}!", "alice", "welcome alice!"},
		{"multiple placeholders", "{username} aka {username}", "bob", "bob aka bob"},
		{"no placeholder", "someone registered", "alice", "someone registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandBroadcast(tt.template, tt.username))
		})
	}
}
