package service

import (
	"context"
	"errors"
	"time"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
)

// VoiceRegistry adapts the persistence layer to the lookup-and-ban contract
// the voice worker's removal pipeline needs.
type VoiceRegistry struct {
	registrations RegistrationStore
	bans          BanStore
}

// NewVoiceRegistry wires a registry adapter.
func NewVoiceRegistry(registrations RegistrationStore, bans BanStore) *VoiceRegistry {
	return &VoiceRegistry{registrations: registrations, bans: bans}
}

// FindByVoiceUsername returns the registrant linked to a voice account.
func (r *VoiceRegistry) FindByVoiceUsername(ctx context.Context, username string) (domain.TelegramID, bool, error) {
	reg, err := r.registrations.FindByVoiceUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return reg.TelegramID, true, nil
}

// Ban records an automatic ban for a removed account.
func (r *VoiceRegistry) Ban(ctx context.Context, registrant domain.TelegramID, username, reason string) error {
	return r.bans.Ban(ctx, domain.Ban{
		TelegramID:    registrant,
		VoiceUsername: username,
		BannedAt:      time.Now().UTC(),
		Reason:        reason,
	})
}
