// Package ttclient implements the voice.Client capability set over the
// TeamTalk 5 TCP text protocol. The adapter is intentionally not safe for
// concurrent use; the voice worker goroutine is its only caller.
package ttclient

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
)

const (
	dialTimeout = 5 * time.Second
	// pollReadWait bounds one socket drain inside PollEvent so the worker
	// loop never blocks on a quiet connection.
	pollReadWait = time.Millisecond

	// broadcastMessageType is the server-wide message type of the protocol.
	broadcastMessageType = 3

	// subscribeAllMask subscribes to every local subscription bit.
	subscribeAllMask = 0xFFFF
)

// Status mode gender bits of the protocol.
const (
	statusModeMale    = 0
	statusModeFemale  = 256
	statusModeNeutral = 4096
)

// Client speaks the TeamTalk 5 text protocol over a single TCP connection.
type Client struct {
	conn    net.Conn
	readBuf []byte

	connected  bool
	connecting bool

	nextCommandID int32
	// currentCommandID is the id of the reply block currently being read,
	// taken from the begin/end framing lines.
	currentCommandID int32

	events []voice.Event
	users  map[int32]domain.OnlineUser
}

var _ voice.Client = (*Client)(nil)

// New creates a disconnected client.
func New() *Client {
	return &Client{users: make(map[int32]domain.OnlineUser)}
}

// Connect dials the server. A synchronous dial failure is returned directly;
// the handshake outcome arrives as events.
func (c *Client) Connect(host string, tcpPort, udpPort int, encrypted bool) error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.reset()
	c.connecting = true

	addr := net.JoinHostPort(host, strconv.Itoa(tcpPort))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		c.connecting = false
		return fmt.Errorf("dial voice server: %w", err)
	}

	if encrypted {
		// TeamTalk servers ship self-signed certificates.
		tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true}) //nolint:gosec
		_ = tlsConn.SetDeadline(time.Now().Add(dialTimeout))
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			c.connecting = false
			return fmt.Errorf("tls handshake: %w", err)
		}
		_ = tlsConn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	c.conn = conn
	c.connecting = false
	c.connected = true
	c.pushEvent(voice.Event{Kind: voice.EventConnectSuccess})
	return nil
}

// Disconnect closes the connection without emitting a loss event.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.connected = false
	c.connecting = false
	return err
}

// Login starts the login command. The outcome arrives as events: "accepted"
// maps to EventLoggedIn, a command error to EventCommandError.
func (c *Client) Login(nickname, username, password, clientName string) {
	c.sendCommand("login",
		field{"username", username},
		field{"password", password},
		field{"nickname", nickname},
		field{"clientname", clientName},
		field{"protocol", "5.0"},
	)
}

// SetStatus publishes the bot's status mode and message.
func (c *Client) SetStatus(gender, statusText string) {
	mode := statusModeNeutral
	switch strings.ToLower(gender) {
	case "male":
		mode = statusModeMale
	case "female":
		mode = statusModeFemale
	}
	c.sendCommand("changestatus",
		intField("statusmode", mode),
		field{"statusmsg", statusText},
	)
}

// SubscribeAll subscribes to every server event the protocol offers.
func (c *Client) SubscribeAll() {
	c.sendCommand("subscribe", intField("sublocal", subscribeAllMask))
}

// SendBroadcast sends a server-wide text message.
func (c *Client) SendBroadcast(text string) {
	c.sendCommand("message",
		intField("type", broadcastMessageType),
		field{"content", text},
	)
}

// CreateAccount dispatches a newaccount command and returns its command id.
func (c *Client) CreateAccount(acc voice.NewAccount) int32 {
	return c.sendTracked("newaccount",
		field{"username", acc.Username},
		field{"password", acc.Password},
		intField("usertype", int(acc.UserType)),
		intField("userrights", int(acc.Rights)),
		field{"note", acc.Note},
	)
}

// DeleteAccount dispatches a delaccount command and returns its command id.
func (c *Client) DeleteAccount(username string) int32 {
	return c.sendTracked("delaccount", field{"username", username})
}

// ListAccounts dispatches a listaccounts command and returns its command id.
func (c *Client) ListAccounts(offset, limit int) int32 {
	return c.sendTracked("listaccounts",
		intField("index", offset),
		intField("count", limit),
	)
}

// OnlineUsers returns the client's view of connected users, built from
// adduser/updateuser/removeuser events.
func (c *Client) OnlineUsers() []domain.OnlineUser {
	users := make([]domain.OnlineUser, 0, len(c.users))
	for _, user := range c.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// PollEvent drains readable socket data and pops the next queued event.
func (c *Client) PollEvent() (voice.Event, bool) {
	c.drainSocket()
	if len(c.events) == 0 {
		return voice.Event{}, false
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, true
}

// IsConnected reports whether the TCP session is up.
func (c *Client) IsConnected() bool { return c.connected }

// IsConnecting reports whether a dial is in flight.
func (c *Client) IsConnecting() bool { return c.connecting }

func (c *Client) reset() {
	c.conn = nil
	c.connected = false
	c.connecting = false
	c.readBuf = c.readBuf[:0]
	c.events = nil
	c.currentCommandID = 0
	c.users = make(map[int32]domain.OnlineUser)
}

func (c *Client) pushEvent(ev voice.Event) {
	c.events = append(c.events, ev)
}

// drainSocket reads whatever is available without blocking the worker loop
// and parses complete protocol lines into events.
func (c *Client) drainSocket() {
	if c.conn == nil || !c.connected {
		return
	}

	chunk := make([]byte, 4096)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(pollReadWait))
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.readBuf = append(c.readBuf, chunk[:n]...)
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			c.handleConnectionLoss()
			break
		}
	}

	for {
		idx := bytes.IndexByte(c.readBuf, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimRight(string(c.readBuf[:idx]), "\r")
		c.readBuf = c.readBuf[idx+1:]
		if line != "" {
			c.handleLine(line)
		}
	}
}

func (c *Client) handleConnectionLoss() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.pushEvent(voice.Event{Kind: voice.EventConnectionLost})
}

// handleLine maps one protocol line onto the event model of the worker.
func (c *Client) handleLine(line string) {
	keyword, params := parseLine(line)

	switch keyword {
	case "teamtalk", "serverupdate", "loggedin", "loggedout",
		"addchannel", "updatechannel", "removechannel", "joined", "left":
		// Connection housekeeping the worker does not care about.

	case "begin":
		c.currentCommandID = int32(params.intValue("id"))
	case "end":
		c.currentCommandID = 0

	case "accepted":
		c.pushEvent(voice.Event{Kind: voice.EventLoggedIn})

	case "ok":
		c.pushEvent(voice.Event{
			Kind:      voice.EventCommandSuccess,
			CommandID: c.currentCommandID,
		})

	case "error":
		c.pushEvent(voice.Event{
			Kind:      voice.EventCommandError,
			CommandID: c.currentCommandID,
			Error: &voice.ServerError{
				Code:    int32(params.intValue("number")),
				Message: params.stringValue("message"),
			},
		})

	case "useraccount":
		c.pushEvent(voice.Event{
			Kind:      voice.EventAccountListItem,
			CommandID: c.currentCommandID,
			Username:  params.stringValue("username"),
		})

	case "addaccount":
		c.pushEvent(voice.Event{
			Kind:     voice.EventAccountCreated,
			Username: params.stringValue("username"),
		})

	case "removeaccount":
		c.pushEvent(voice.Event{
			Kind:     voice.EventAccountRemoved,
			Username: params.stringValue("username"),
		})

	case "adduser", "updateuser":
		user := domain.OnlineUser{
			ID:        int32(params.intValue("userid")),
			Nickname:  params.stringValue("nickname"),
			Username:  params.stringValue("username"),
			ChannelID: int32(params.intValue("chanid")),
			UserType:  uint8(params.intValue("usertype")),
		}
		c.users[user.ID] = user

	case "removeuser":
		delete(c.users, int32(params.intValue("userid")))
	}
}

type field struct {
	key   string
	value string
}

func intField(key string, value int) field {
	return field{key: key, value: strconv.Itoa(value)}
}

// sendTracked sends a command with a fresh id and returns it, or a
// non-positive value when the dispatch failed synchronously.
func (c *Client) sendTracked(keyword string, fields ...field) int32 {
	c.nextCommandID++
	id := c.nextCommandID
	fields = append(fields, intField("id", int(id)))
	if !c.writeCommand(keyword, fields) {
		return 0
	}
	return id
}

func (c *Client) sendCommand(keyword string, fields ...field) {
	c.writeCommand(keyword, fields)
}

func (c *Client) writeCommand(keyword string, fields []field) bool {
	if c.conn == nil || !c.connected {
		return false
	}

	var sb strings.Builder
	sb.WriteString(keyword)
	for _, f := range fields {
		sb.WriteByte(' ')
		sb.WriteString(f.key)
		sb.WriteByte('=')
		if isNumeric(f.value) {
			sb.WriteString(f.value)
		} else {
			sb.WriteString(quote(f.value))
		}
	}
	sb.WriteString("\r\n")

	_ = c.conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := c.conn.Write([]byte(sb.String())); err != nil {
		c.handleConnectionLoss()
		return false
	}
	return true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// quote renders a protocol string literal, escaping backslash and quote.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}
