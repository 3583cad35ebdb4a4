package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/metrics"
)

// DefaultCommandWait is the short blocking wait for an inbound command at
// the top of each loop iteration, keeping the loop from busy-spinning.
const DefaultCommandWait = 100 * time.Millisecond

// WorkerConfig holds the connection, login and behavior settings of the
// worker.
type WorkerConfig struct {
	Host      string
	TCPPort   int
	UDPPort   int
	Encrypted bool

	Nickname   string
	Username   string
	Password   string
	ClientName string
	StatusText string
	Gender     string

	// Rights is the rights bitmask granted to created accounts.
	Rights uint32

	// BroadcastTemplate, when non-empty, is sent to all connected users
	// after an account creation is dispatched. "{username}" is substituted.
	BroadcastTemplate string

	// CommandWait, ListGrace and RemovalDebounce default to
	// DefaultCommandWait, DefaultListGrace and DefaultRemovalDebounce.
	CommandWait     time.Duration
	ListGrace       time.Duration
	RemovalDebounce time.Duration

	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

// connection states of the worker.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateLoggedIn
)

// Worker owns the voice client exclusively. It drains the command queue,
// polls events, and drives the correlation table, the list aggregator and
// the lifecycle debouncer from a single goroutine.
type Worker struct {
	cfg      WorkerConfig
	client   Client
	commands <-chan Command
	logger   *slog.Logger
	metrics  *metrics.VoiceMetrics

	state     connState
	pending   *pendingCommands
	lists     *listAggregator
	deletions *deletionDebouncer
	reconnect *reconnectPolicy
	now       func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetrics attaches Prometheus metrics to the worker.
func WithMetrics(m *metrics.VoiceMetrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// withClock overrides the worker clock in tests.
func withClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

// NewWorker wires a worker over the given client and command queue.
// The client must not be touched by anyone else once the worker runs.
func NewWorker(
	cfg WorkerConfig,
	client Client,
	commands <-chan Command,
	notifier LifecycleNotifier,
	registry Registry,
	opts ...WorkerOption,
) *Worker {
	if cfg.CommandWait <= 0 {
		cfg.CommandWait = DefaultCommandWait
	}

	w := &Worker{
		cfg:      cfg,
		client:   client,
		commands: commands,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.pending = newPendingCommands(w.logger)
	w.lists = newListAggregator(cfg.ListGrace, func() time.Time { return w.now() }, w.logger)
	w.deletions = newDeletionDebouncer(cfg.RemovalDebounce, notifier, registry, w.logger)
	w.reconnect = newReconnectPolicy(cfg.ReconnectInitialDelay, cfg.ReconnectMaxDelay)
	return w
}

// Run executes the worker loop until ctx is cancelled or the command channel
// is closed. Transport failures are retried under backoff and never stop the
// loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("connecting to voice server",
		slog.String("host", w.cfg.Host),
		slog.Int("tcp_port", w.cfg.TCPPort),
	)
	w.connect()

	defer func() {
		w.deletions.stopAll()
		if err := w.client.Disconnect(); err != nil {
			w.logger.Warn("failed to disconnect voice client", slog.String("error", err.Error()))
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !w.processCommands(ctx) {
			w.logger.Warn("voice command channel closed, stopping worker")
			return nil
		}

		w.pollEvents(ctx)
		w.lists.sweep()
		w.maybeReconnect()
		w.metrics.SetPending(w.pending.size(), w.lists.size())
	}
}

// processCommands performs one short blocking wait for a command, then
// drains the queue without blocking. Returns false when the channel closed.
func (w *Worker) processCommands(ctx context.Context) bool {
	wait := time.NewTimer(w.cfg.CommandWait)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		return true
	case cmd, ok := <-w.commands:
		if !ok {
			return false
		}
		w.handleCommand(cmd)
	case <-wait.C:
		return true
	}

	for {
		select {
		case cmd, ok := <-w.commands:
			if !ok {
				return false
			}
			w.handleCommand(cmd)
		default:
			return true
		}
	}
}

func (w *Worker) handleCommand(cmd Command) {
	if w.state != stateLoggedIn {
		w.rejectCommand(cmd)
		return
	}

	switch c := cmd.(type) {
	case createAccountCommand:
		w.dispatchCreateAccount(c)
	case deleteUserCommand:
		w.dispatchDeleteUser(c)
	case checkUserExistsCommand:
		w.dispatchCheckUserExists(c)
	case getAllUsersCommand:
		w.dispatchGetAllUsers(c)
	case getOnlineUsersCommand:
		w.metrics.ObserveCommand("get_online_users", metrics.StatusDispatched)
		sendReply(c.reply, w.client.OnlineUsers())
	}
}

// rejectCommand fails a command immediately while no login is available.
func (w *Worker) rejectCommand(cmd Command) {
	switch c := cmd.(type) {
	case createAccountCommand:
		w.logger.Warn("rejecting create account command: not logged in",
			slog.String("username", c.params.Username.String()),
		)
		w.metrics.ObserveCommand("create_account", metrics.StatusNotConnected)
		sendReply(c.reply, ErrNotConnected)
	case deleteUserCommand:
		w.logger.Warn("rejecting delete user command: not logged in",
			slog.String("username", c.username.String()),
		)
		w.metrics.ObserveCommand("delete_user", metrics.StatusNotConnected)
		sendReply(c.reply, ErrNotConnected)
	case checkUserExistsCommand:
		w.logger.Warn("rejecting existence check: not logged in")
		w.metrics.ObserveCommand("check_user_exists", metrics.StatusNotConnected)
		sendReply(c.reply, false)
	case getAllUsersCommand:
		w.logger.Warn("rejecting account list request: not logged in")
		w.metrics.ObserveCommand("get_all_users", metrics.StatusNotConnected)
		sendReply(c.reply, []string{})
	case getOnlineUsersCommand:
		w.logger.Warn("rejecting online users request: not logged in")
		w.metrics.ObserveCommand("get_online_users", metrics.StatusNotConnected)
		sendReply(c.reply, []domain.OnlineUser{})
	}
}

func (w *Worker) dispatchCreateAccount(c createAccountCommand) {
	params := c.params
	sourceInfo := params.SourceInfo
	if sourceInfo == "" {
		sourceInfo = params.Source.Describe()
	}

	userType := UserTypeDefault
	if params.AccountType == domain.AccountAdmin {
		userType = UserTypeAdmin
	}

	acc := NewAccount{
		Username: params.Username.String(),
		Password: params.Password.String(),
		UserType: userType,
		Rights:   w.cfg.Rights,
		Note:     fmt.Sprintf("Reg via Bot (%s), nick=%s", sourceInfo, params.Nickname.String()),
	}

	id := w.client.CreateAccount(acc)
	if id <= 0 {
		w.logger.Warn("create account dispatch failed",
			slog.String("username", params.Username.String()),
		)
		w.metrics.ObserveCommand("create_account", metrics.StatusDispatchFailed)
		sendReply(c.reply, ErrDispatchFailed)
		return
	}

	w.logger.Debug("create account dispatched",
		slog.Int("command_id", int(id)),
		slog.String("username", params.Username.String()),
		slog.String("source", sourceInfo),
	)
	w.metrics.ObserveCommand("create_account", metrics.StatusDispatched)
	if w.cfg.BroadcastTemplate != "" {
		w.client.SendBroadcast(expandBroadcast(w.cfg.BroadcastTemplate, params.Username.String()))
	}
	w.pending.track(id, c.reply)
}

func (w *Worker) dispatchDeleteUser(c deleteUserCommand) {
	id := w.client.DeleteAccount(c.username.String())
	if id <= 0 {
		w.logger.Warn("delete user dispatch failed",
			slog.String("username", c.username.String()),
		)
		w.metrics.ObserveCommand("delete_user", metrics.StatusDispatchFailed)
		sendReply(c.reply, ErrDispatchFailed)
		return
	}
	w.logger.Debug("delete user dispatched",
		slog.Int("command_id", int(id)),
		slog.String("username", c.username.String()),
	)
	w.metrics.ObserveCommand("delete_user", metrics.StatusDispatched)
	w.pending.track(id, c.reply)
}

// listAccountsLimit covers any realistic community server in one request.
const listAccountsLimit = 10000

func (w *Worker) dispatchGetAllUsers(c getAllUsersCommand) {
	id := w.client.ListAccounts(0, listAccountsLimit)
	if id <= 0 {
		w.logger.Warn("account list dispatch failed")
		w.metrics.ObserveCommand("get_all_users", metrics.StatusDispatchFailed)
		sendReply(c.reply, []string{})
		return
	}
	w.logger.Debug("account list dispatched", slog.Int("command_id", int(id)))
	w.metrics.ObserveCommand("get_all_users", metrics.StatusDispatched)
	w.lists.trackAll(id, c.reply)
}

func (w *Worker) dispatchCheckUserExists(c checkUserExistsCommand) {
	id := w.client.ListAccounts(0, listAccountsLimit)
	if id <= 0 {
		w.logger.Warn("account list dispatch failed for existence check",
			slog.String("username", c.username.String()),
		)
		w.metrics.ObserveCommand("check_user_exists", metrics.StatusDispatchFailed)
		sendReply(c.reply, false)
		return
	}
	w.logger.Debug("account list dispatched for existence check",
		slog.Int("command_id", int(id)),
		slog.String("username", c.username.String()),
	)
	w.metrics.ObserveCommand("check_user_exists", metrics.StatusDispatched)
	w.lists.trackExists(id, c.username.String(), c.reply)
}

// pollEvents drains the client event queue, updating connection state and
// feeding the correlation table, aggregator and debouncer.
func (w *Worker) pollEvents(ctx context.Context) {
	for {
		ev, ok := w.client.PollEvent()
		if !ok {
			return
		}

		switch ev.Kind {
		case EventConnectSuccess:
			w.metrics.ObserveEvent("connect_success")
			w.handleConnected()
		case EventConnectFailed:
			w.metrics.ObserveEvent("connect_failed")
			w.handleConnectionLost()
		case EventConnectionLost:
			w.metrics.ObserveEvent("connection_lost")
			w.handleConnectionLost()
		case EventLoggedIn:
			w.metrics.ObserveEvent("logged_in")
			w.handleLoggedIn()
		case EventCommandSuccess:
			w.metrics.ObserveEvent("command_success")
			w.handleCommandSuccess(ev.CommandID)
		case EventCommandError:
			w.metrics.ObserveEvent("command_error")
			w.handleCommandError(ev)
		case EventAccountListItem:
			w.metrics.ObserveEvent("account_list_item")
			w.lists.addItem(ev.CommandID, ev.Username)
		case EventAccountCreated:
			w.metrics.ObserveEvent("account_created")
			if w.state == stateLoggedIn {
				w.deletions.accountCreated(ctx, ev.Username)
			}
		case EventAccountRemoved:
			w.metrics.ObserveEvent("account_removed")
			w.deletions.accountRemoved(ev.Username)
		}
	}
}

func (w *Worker) handleConnected() {
	w.logger.Info("connected to voice server, logging in")
	w.state = stateConnected
	w.reconnect.markConnected()
	w.client.Login(w.cfg.Nickname, w.cfg.Username, w.cfg.Password, w.cfg.ClientName)
}

func (w *Worker) handleLoggedIn() {
	w.logger.Info("logged in to voice server")
	w.state = stateLoggedIn
	w.client.SetStatus(w.cfg.Gender, w.cfg.StatusText)
	w.client.SubscribeAll()
}

func (w *Worker) handleConnectionLost() {
	w.logger.Warn("voice server connection lost")
	w.state = stateDisconnected
	w.reconnect.markDisconnected(w.now())

	if failed := w.pending.failAll(ErrConnectionLost); failed > 0 {
		w.logger.Warn("failed pending commands on disconnect", slog.Int("count", failed))
	}
	if dropped := w.lists.failAll(); dropped > 0 {
		w.logger.Warn("dropped pending list requests on disconnect", slog.Int("count", dropped))
	}
}

func (w *Worker) handleCommandSuccess(id int32) {
	w.logger.Debug("command succeeded", slog.Int("command_id", int(id)))
	w.pending.succeed(id)
	if w.lists.complete(id) {
		w.logger.Debug("list command completed, waiting for account events",
			slog.Int("command_id", int(id)),
		)
	}
}

func (w *Worker) handleCommandError(ev Event) {
	serverErr := ev.Error
	if serverErr == nil {
		serverErr = &ServerError{Message: "unknown server error"}
	}
	w.logger.Warn("command failed on voice server",
		slog.Int("command_id", int(ev.CommandID)),
		slog.Int("code", int(serverErr.Code)),
		slog.String("message", serverErr.Message),
	)
	if w.pending.fail(ev.CommandID, serverErr) {
		w.metrics.ObserveCommand("pending", metrics.StatusRejected)
	}
	w.lists.fail(ev.CommandID)
}

// maybeReconnect starts a new connection attempt when logged out and the
// backoff window has elapsed.
func (w *Worker) maybeReconnect() {
	if w.state == stateLoggedIn || w.client.IsConnected() || w.client.IsConnecting() {
		return
	}
	if !w.reconnect.shouldAttempt(w.now()) {
		return
	}
	w.metrics.ObserveReconnect()
	w.connect()
}

func (w *Worker) connect() {
	w.state = stateConnecting
	err := w.client.Connect(w.cfg.Host, w.cfg.TCPPort, w.cfg.UDPPort, w.cfg.Encrypted)
	if err != nil {
		w.logger.Warn("connect attempt failed",
			slog.String("host", w.cfg.Host),
			slog.String("error", err.Error()),
		)
		w.state = stateDisconnected
		w.reconnect.markDisconnected(w.now())
	}
}

func expandBroadcast(template, username string) string {
	return strings.ReplaceAll(template, "{username}", username)
}
