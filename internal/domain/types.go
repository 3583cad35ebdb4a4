// Package domain holds the core value types shared by the bot, the web
// surface and the voice worker.
package domain

import (
	"fmt"
	"strings"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// TelegramID identifies a Telegram user or chat.
type TelegramID int64

// Int64 returns the raw chat identifier.
func (id TelegramID) Int64() int64 { return int64(id) }

func (id TelegramID) String() string { return fmt.Sprintf("%d", int64(id)) }

// Username is a validated TeamTalk account name.
type Username struct{ value string }

// ParseUsername trims and validates a raw username.
func ParseUsername(input string) (Username, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Username{}, errs.ErrInvalidInput
	}
	return Username{value: trimmed}, nil
}

func (u Username) String() string { return u.value }

// IsZero reports whether the username is unset.
func (u Username) IsZero() bool { return u.value == "" }

// Password is a validated TeamTalk account password.
type Password struct{ value string }

// ParsePassword trims and validates a raw password.
func ParsePassword(input string) (Password, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Password{}, errs.ErrInvalidInput
	}
	return Password{value: trimmed}, nil
}

func (p Password) String() string { return p.value }

// Nickname is a validated display name for a TeamTalk account.
type Nickname struct{ value string }

// ParseNickname trims and validates a raw nickname.
func ParseNickname(input string) (Nickname, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Nickname{}, errs.ErrInvalidInput
	}
	return Nickname{value: trimmed}, nil
}

func (n Nickname) String() string { return n.value }

// AccountType selects the TeamTalk account privilege level.
type AccountType int

// Account privilege levels.
const (
	AccountDefault AccountType = iota
	AccountAdmin
)

func (t AccountType) String() string {
	if t == AccountAdmin {
		return "admin"
	}
	return "default"
}

// RegistrationSource records where a registration request came from.
type RegistrationSource struct {
	// TelegramID is set for bot registrations.
	TelegramID TelegramID
	// WebIP is set for web form registrations.
	WebIP string
}

// SourceTelegram builds a Telegram registration source.
func SourceTelegram(id TelegramID) RegistrationSource {
	return RegistrationSource{TelegramID: id}
}

// SourceWeb builds a web registration source.
func SourceWeb(ip string) RegistrationSource {
	return RegistrationSource{WebIP: ip}
}

// Describe renders the source the way it is stored in account notes.
func (s RegistrationSource) Describe() string {
	if s.WebIP != "" {
		return fmt.Sprintf("Web IP: %s", s.WebIP)
	}
	return fmt.Sprintf("Telegram ID: %d", s.TelegramID.Int64())
}

// OnlineUser describes a user currently connected to the voice server.
type OnlineUser struct {
	ID        int32
	Nickname  string
	Username  string
	ChannelID int32
	UserType  uint8
}

// DownloadTokenType distinguishes generated download artifacts.
type DownloadTokenType string

// Download artifact kinds.
const (
	TokenTTConfig  DownloadTokenType = "tt_config"
	TokenClientZip DownloadTokenType = "client_zip"
)

// ParseDownloadTokenType validates a stored token type string.
func ParseDownloadTokenType(value string) (DownloadTokenType, error) {
	switch DownloadTokenType(value) {
	case TokenTTConfig, TokenClientZip:
		return DownloadTokenType(value), nil
	default:
		return "", errs.ErrInvalidInput
	}
}
