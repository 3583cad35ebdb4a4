// Package service implements the application flows on top of the voice
// worker queue and the persistence layer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/files"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
)

// VoiceCommander is the slice of the voice worker queue the services need.
type VoiceCommander interface {
	CreateAccount(ctx context.Context, params voice.CreateAccountParams) error
	DeleteUser(ctx context.Context, username domain.Username) error
	CheckUserExists(ctx context.Context, username domain.Username) (bool, error)
	GetAllUsers(ctx context.Context) ([]string, error)
	GetOnlineUsers(ctx context.Context) ([]domain.OnlineUser, error)
}

// RegistrationStore persists Telegram-to-voice-account links.
type RegistrationStore interface {
	Add(ctx context.Context, registrant domain.TelegramID, voiceUsername string) error
	IsRegistered(ctx context.Context, registrant domain.TelegramID) (bool, error)
	FindByTelegramID(ctx context.Context, registrant domain.TelegramID) (*domain.Registration, error)
	FindByVoiceUsername(ctx context.Context, voiceUsername string) (*domain.Registration, error)
	Delete(ctx context.Context, registrant domain.TelegramID) (bool, error)
	List(ctx context.Context) ([]domain.Registration, error)
}

// BanStore persists registration bans.
type BanStore interface {
	Ban(ctx context.Context, ban domain.Ban) error
	Unban(ctx context.Context, registrant domain.TelegramID) (bool, error)
	Find(ctx context.Context, registrant domain.TelegramID) (*domain.Ban, error)
	IsBanned(ctx context.Context, registrant domain.TelegramID) (bool, error)
	List(ctx context.Context) ([]domain.Ban, error)
}

// RegistrationAssets are the client artifacts generated for one account.
type RegistrationAssets struct {
	Content  string
	Link     string
	Filename string
}

// BuildAssets renders the .tt file and quick-connect link for an account.
func BuildAssets(cfg config.VoiceConfig, username, password, nickname string) RegistrationAssets {
	return RegistrationAssets{
		Content:  files.TTFileContent(cfg, username, password, nickname),
		Link:     files.TTLink(cfg, username, password, nickname),
		Filename: files.TTFileName(cfg),
	}
}

// RegisterParams describes one account creation request.
type RegisterParams struct {
	Username    domain.Username
	Password    domain.Password
	Nickname    domain.Nickname
	AccountType domain.AccountType
	Source      domain.RegistrationSource
	// SourceInfo overrides the default source description in account notes.
	SourceInfo string
	// Registrant links the created account to a Telegram user; zero for web
	// registrations.
	Registrant domain.TelegramID
}

// RegistrationResult reports the outcome of one account creation.
type RegistrationResult struct {
	// DBSyncError is set when the account exists on the server but the
	// local registration could not be stored.
	DBSyncError string
	Assets      RegistrationAssets
}

// RegistrationService creates voice accounts and keeps the local
// registration records in sync.
type RegistrationService struct {
	commander     VoiceCommander
	registrations RegistrationStore
	bans          BanStore
	cfg           *config.Config
	logger        *slog.Logger
}

// NewRegistrationService wires a registration service.
func NewRegistrationService(
	commander VoiceCommander,
	registrations RegistrationStore,
	bans BanStore,
	cfg *config.Config,
) *RegistrationService {
	return &RegistrationService{
		commander:     commander,
		registrations: registrations,
		bans:          bans,
		cfg:           cfg,
		logger:        slog.Default(),
	}
}

// WithRegistrationLogger sets the service logger.
func (s *RegistrationService) WithRegistrationLogger(logger *slog.Logger) *RegistrationService {
	s.logger = logger
	return s
}

// Eligibility classifies whether a Telegram user may start a registration.
type Eligibility int

// Eligibility outcomes.
const (
	EligibilityOK Eligibility = iota
	EligibilityBanned
	EligibilityAlreadyRegistered
)

// CheckEligibility reports whether the Telegram user may start a
// registration and why not.
func (s *RegistrationService) CheckEligibility(ctx context.Context, registrant domain.TelegramID) (Eligibility, error) {
	banned, err := s.bans.IsBanned(ctx, registrant)
	if err != nil {
		return EligibilityOK, err
	}
	if banned {
		return EligibilityBanned, nil
	}

	registered, err := s.registrations.IsRegistered(ctx, registrant)
	if err != nil {
		return EligibilityOK, err
	}
	if registered {
		return EligibilityAlreadyRegistered, nil
	}
	return EligibilityOK, nil
}

// CanRegister reports whether the Telegram user may start a registration:
// not banned and not registered yet.
func (s *RegistrationService) CanRegister(ctx context.Context, registrant domain.TelegramID) (bool, error) {
	eligibility, err := s.CheckEligibility(ctx, registrant)
	if err != nil {
		return false, err
	}
	return eligibility == EligibilityOK, nil
}

// IsUsernameTaken checks the live server for an existing account name.
func (s *RegistrationService) IsUsernameTaken(ctx context.Context, username domain.Username) (bool, error) {
	return s.commander.CheckUserExists(ctx, username)
}

// Register creates the account on the voice server, stores the registration
// link and builds the client assets. A server rejection or connectivity
// failure is returned as the error; a failed local write after a successful
// server creation is reported through RegistrationResult.DBSyncError
// instead, because the account already exists and must not look failed.
func (s *RegistrationService) Register(ctx context.Context, params RegisterParams) (*RegistrationResult, error) {
	err := s.commander.CreateAccount(ctx, voice.CreateAccountParams{
		Username:    params.Username,
		Password:    params.Password,
		Nickname:    params.Nickname,
		AccountType: params.AccountType,
		Source:      params.Source,
		SourceInfo:  params.SourceInfo,
	})
	if err != nil {
		s.logger.Warn("voice account creation failed",
			slog.String("username", params.Username.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	result := &RegistrationResult{
		Assets: BuildAssets(s.cfg.Voice,
			params.Username.String(),
			params.Password.String(),
			params.Nickname.String(),
		),
	}

	if params.Registrant != 0 {
		if err := s.registrations.Add(ctx, params.Registrant, params.Username.String()); err != nil {
			s.logger.Error("account created but registration write failed",
				slog.Int64("telegram_id", params.Registrant.Int64()),
				slog.String("username", params.Username.String()),
				slog.String("error", err.Error()),
			)
			result.DBSyncError = err.Error()
		}
	}

	return result, nil
}

// TryCreateClientZip bundles the client template with the generated .tt
// file. Returns false when no template directory is configured or the
// bundling failed; the .tt file alone is still a usable outcome.
func (s *RegistrationService) TryCreateClientZip(outputPath string, assets RegistrationAssets) bool {
	templateDir := s.cfg.Files.ClientTemplateDir
	if templateDir == "" {
		return false
	}

	err := files.WriteClientZip(templateDir, outputPath, assets.Filename, assets.Content)
	if err != nil {
		if !errors.Is(err, files.ErrTemplateDirMissing) {
			s.logger.Warn("client zip generation failed",
				slog.String("output", filepath.Base(outputPath)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return true
}
