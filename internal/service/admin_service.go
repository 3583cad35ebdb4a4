package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// SourceInfo is the structured form of the source string stored in account
// notes for bot registrations: "lang=..;tg_username=..;fullname=..".
type SourceInfo struct {
	Lang       domain.LanguageCode
	TGUsername string
	FullName   string
}

// ParseSourceInfo parses a source-info string. Unknown keys are ignored and
// missing values fall back to defaults.
func ParseSourceInfo(raw string) SourceInfo {
	info := SourceInfo{Lang: domain.DefaultLanguage}
	for _, part := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch key {
		case "lang":
			info.Lang = domain.ParseLanguageCodeOrDefault(value)
		case "tg_username":
			info.TGUsername = value
		case "fullname":
			info.FullName = value
		}
	}
	return info
}

// FormatSourceInfo renders the source-info string stored in account notes.
func FormatSourceInfo(info SourceInfo) string {
	return "lang=" + info.Lang.String() +
		";tg_username=" + info.TGUsername +
		";fullname=" + info.FullName
}

// AdminService implements the administrative operations of the bot panel.
type AdminService struct {
	commander     VoiceCommander
	registrations RegistrationStore
	bans          BanStore
	logger        *slog.Logger
}

// NewAdminService wires an admin service.
func NewAdminService(
	commander VoiceCommander,
	registrations RegistrationStore,
	bans BanStore,
) *AdminService {
	return &AdminService{
		commander:     commander,
		registrations: registrations,
		bans:          bans,
		logger:        slog.Default(),
	}
}

// WithAdminLogger sets the service logger.
func (s *AdminService) WithAdminLogger(logger *slog.Logger) *AdminService {
	s.logger = logger
	return s
}

// BanTelegramUser bans a registrant by Telegram id. The linked voice
// username is recorded when a registration exists.
func (s *AdminService) BanTelegramUser(ctx context.Context, target, bannedBy domain.TelegramID, reason string) error {
	ban := domain.Ban{
		TelegramID: target,
		BannedAt:   time.Now().UTC(),
		BannedBy:   bannedBy,
		Reason:     reason,
	}

	if reg, err := s.registrations.FindByTelegramID(ctx, target); err == nil {
		ban.VoiceUsername = reg.VoiceUsername
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return s.bans.Ban(ctx, ban)
}

// BanVoiceUsername bans the registrant owning a voice account.
func (s *AdminService) BanVoiceUsername(ctx context.Context, voiceUsername string, bannedBy domain.TelegramID, reason string) (domain.TelegramID, error) {
	reg, err := s.registrations.FindByVoiceUsername(ctx, voiceUsername)
	if err != nil {
		return 0, err
	}

	err = s.bans.Ban(ctx, domain.Ban{
		TelegramID:    reg.TelegramID,
		VoiceUsername: reg.VoiceUsername,
		BannedAt:      time.Now().UTC(),
		BannedBy:      bannedBy,
		Reason:        reason,
	})
	if err != nil {
		return 0, err
	}
	return reg.TelegramID, nil
}

// Unban lifts a ban and reports whether one existed.
func (s *AdminService) Unban(ctx context.Context, target domain.TelegramID) (bool, error) {
	return s.bans.Unban(ctx, target)
}

// DeleteRegistration removes the local registration record of a Telegram
// user without touching the voice server.
func (s *AdminService) DeleteRegistration(ctx context.Context, target domain.TelegramID) (bool, error) {
	return s.registrations.Delete(ctx, target)
}

// DeleteVoiceAccount removes an account from the voice server. The
// lifecycle pipeline picks up the resulting removal event and handles the
// local side.
func (s *AdminService) DeleteVoiceAccount(ctx context.Context, username domain.Username) error {
	return s.commander.DeleteUser(ctx, username)
}

// ListRegistrations returns every local registration.
func (s *AdminService) ListRegistrations(ctx context.Context) ([]domain.Registration, error) {
	return s.registrations.List(ctx)
}

// ListBans returns every recorded ban.
func (s *AdminService) ListBans(ctx context.Context) ([]domain.Ban, error) {
	return s.bans.List(ctx)
}

// ListServerAccounts enumerates every account on the voice server.
func (s *AdminService) ListServerAccounts(ctx context.Context) ([]string, error) {
	return s.commander.GetAllUsers(ctx)
}

// ListOnlineUsers returns the users currently connected to the server.
func (s *AdminService) ListOnlineUsers(ctx context.Context) ([]domain.OnlineUser, error) {
	return s.commander.GetOnlineUsers(ctx)
}
