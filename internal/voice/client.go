// Package voice bridges application commands onto a single stateful
// connection to a TeamTalk server. One worker goroutine exclusively owns the
// non-thread-safe client; everything else talks to it through a command
// queue with single-use reply slots.
package voice

import (
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// TeamTalk user account types.
const (
	UserTypeDefault uint32 = 0x01
	UserTypeAdmin   uint32 = 0x02
)

// EventKind enumerates the raw connection events delivered by the client.
type EventKind int

// Raw client event kinds.
const (
	EventConnectSuccess EventKind = iota
	EventConnectFailed
	EventConnectionLost
	EventLoggedIn
	EventCommandSuccess
	EventCommandError
	EventAccountListItem
	EventAccountCreated
	EventAccountRemoved
)

// Event is a single polled client event. CommandID correlates terminal
// success/error events with a previously dispatched command; the client does
// not guarantee it on account-list items.
type Event struct {
	Kind      EventKind
	CommandID int32
	// Username is set on account list item / created / removed events.
	Username string
	// Error is set on EventCommandError.
	Error *ServerError
}

// NewAccount describes an account to create on the voice server.
type NewAccount struct {
	Username string
	Password string
	UserType uint32
	Rights   uint32
	Note     string
}

// Client is the opaque capability set of the underlying TeamTalk SDK
// connection. Implementations are NOT safe for concurrent use; only the
// worker goroutine may touch a Client.
type Client interface {
	Connect(host string, tcpPort, udpPort int, encrypted bool) error
	Disconnect() error

	// Login starts the login command; the outcome arrives as events.
	Login(nickname, username, password, clientName string)
	SetStatus(gender, statusText string)
	SubscribeAll()
	SendBroadcast(text string)

	// CreateAccount, DeleteAccount and ListAccounts dispatch asynchronous
	// commands and return the command id, or a non-positive value when the
	// dispatch failed synchronously.
	CreateAccount(acc NewAccount) int32
	DeleteAccount(username string) int32
	ListAccounts(offset, limit int) int32

	// OnlineUsers returns the client's local view of connected users.
	OnlineUsers() []domain.OnlineUser

	// PollEvent returns the next queued event, or ok=false when none remain.
	PollEvent() (ev Event, ok bool)

	IsConnected() bool
	IsConnecting() bool
}
