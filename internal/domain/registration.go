package domain

import "time"

// Registration links a Telegram user to the voice server account created for
// them.
type Registration struct {
	TelegramID    TelegramID
	VoiceUsername string
	CreatedAt     time.Time
}

// PendingRegistration is a registration request awaiting admin approval.
// The password is held in cleartext because the voice server needs it
// verbatim once the request is approved.
type PendingRegistration struct {
	RequestKey string
	Registrant TelegramID
	Username   string
	Password   string
	Nickname   string
	SourceInfo string
	CreatedAt  time.Time
}

// Ban blocks a Telegram user from registering again.
type Ban struct {
	TelegramID    TelegramID
	VoiceUsername string
	BannedAt      time.Time
	// BannedBy is zero for automatic bans.
	BannedBy TelegramID
	Reason   string
}
