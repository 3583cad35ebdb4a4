package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain/errs"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
)

type fakeCommander struct {
	createErr    error
	created      []voice.CreateAccountParams
	deleted      []domain.Username
	existing     map[string]bool
	serverUsers  []string
	onlineUsers  []domain.OnlineUser
	deleteErr    error
	existsErr    error
	listUsersErr error
}

func (c *fakeCommander) CreateAccount(_ context.Context, params voice.CreateAccountParams) error {
	if c.createErr != nil {
		return c.createErr
	}
	c.created = append(c.created, params)
	return nil
}

func (c *fakeCommander) DeleteUser(_ context.Context, username domain.Username) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, username)
	return nil
}

func (c *fakeCommander) CheckUserExists(_ context.Context, username domain.Username) (bool, error) {
	return c.existing[username.String()], c.existsErr
}

func (c *fakeCommander) GetAllUsers(_ context.Context) ([]string, error) {
	return c.serverUsers, c.listUsersErr
}

func (c *fakeCommander) GetOnlineUsers(_ context.Context) ([]domain.OnlineUser, error) {
	return c.onlineUsers, nil
}

type memRegistrationStore struct {
	byTelegramID map[int64]domain.Registration
	addErr       error
}

func newMemRegistrationStore() *memRegistrationStore {
	return &memRegistrationStore{byTelegramID: make(map[int64]domain.Registration)}
}

func (s *memRegistrationStore) Add(_ context.Context, registrant domain.TelegramID, voiceUsername string) error {
	if s.addErr != nil {
		return s.addErr
	}
	if _, ok := s.byTelegramID[registrant.Int64()]; ok {
		return errs.ErrAlreadyExists
	}
	s.byTelegramID[registrant.Int64()] = domain.Registration{
		TelegramID:    registrant,
		VoiceUsername: voiceUsername,
	}
	return nil
}

func (s *memRegistrationStore) IsRegistered(_ context.Context, registrant domain.TelegramID) (bool, error) {
	_, ok := s.byTelegramID[registrant.Int64()]
	return ok, nil
}

func (s *memRegistrationStore) FindByTelegramID(_ context.Context, registrant domain.TelegramID) (*domain.Registration, error) {
	reg, ok := s.byTelegramID[registrant.Int64()]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &reg, nil
}

func (s *memRegistrationStore) FindByVoiceUsername(_ context.Context, voiceUsername string) (*domain.Registration, error) {
	for _, reg := range s.byTelegramID {
		if reg.VoiceUsername == voiceUsername {
			return &reg, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memRegistrationStore) Delete(_ context.Context, registrant domain.TelegramID) (bool, error) {
	if _, ok := s.byTelegramID[registrant.Int64()]; !ok {
		return false, nil
	}
	delete(s.byTelegramID, registrant.Int64())
	return true, nil
}

func (s *memRegistrationStore) List(_ context.Context) ([]domain.Registration, error) {
	out := make([]domain.Registration, 0, len(s.byTelegramID))
	for _, reg := range s.byTelegramID {
		out = append(out, reg)
	}
	return out, nil
}

type memBanStore struct {
	bans map[int64]domain.Ban
}

func newMemBanStore() *memBanStore {
	return &memBanStore{bans: make(map[int64]domain.Ban)}
}

func (s *memBanStore) Ban(_ context.Context, ban domain.Ban) error {
	s.bans[ban.TelegramID.Int64()] = ban
	return nil
}

func (s *memBanStore) Unban(_ context.Context, registrant domain.TelegramID) (bool, error) {
	if _, ok := s.bans[registrant.Int64()]; !ok {
		return false, nil
	}
	delete(s.bans, registrant.Int64())
	return true, nil
}

func (s *memBanStore) Find(_ context.Context, registrant domain.TelegramID) (*domain.Ban, error) {
	ban, ok := s.bans[registrant.Int64()]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &ban, nil
}

func (s *memBanStore) IsBanned(_ context.Context, registrant domain.TelegramID) (bool, error) {
	_, ok := s.bans[registrant.Int64()]
	return ok, nil
}

func (s *memBanStore) List(_ context.Context) ([]domain.Ban, error) {
	out := make([]domain.Ban, 0, len(s.bans))
	for _, ban := range s.bans {
		out = append(out, ban)
	}
	return out, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Voice.Host = "10.0.0.5"
	cfg.Voice.TCPPort = 10333
	cfg.Voice.ServerName = "Community Server"
	cfg.Voice.PublicHostname = "tt.example.org"
	return cfg
}

func mustUsername(t *testing.T, v string) domain.Username {
	t.Helper()
	u, err := domain.ParseUsername(v)
	require.NoError(t, err)
	return u
}

func registerParams(t *testing.T, registrant domain.TelegramID) service.RegisterParams {
	t.Helper()
	password, err := domain.ParsePassword("hunter2")
	require.NoError(t, err)
	nickname, err := domain.ParseNickname("Alice")
	require.NoError(t, err)
	return service.RegisterParams{
		Username:    mustUsername(t, "alice"),
		Password:    password,
		Nickname:    nickname,
		AccountType: domain.AccountDefault,
		Source:      domain.SourceTelegram(registrant),
		Registrant:  registrant,
	}
}

func TestParseSourceInfo(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want service.SourceInfo
	}{
		{
			"full",
			"lang=ru;tg_username=alice_tg;fullname=Alice Smith",
			service.SourceInfo{Lang: "ru", TGUsername: "alice_tg", FullName: "Alice Smith"},
		},
		{
			"missing fields default",
			"tg_username=bob",
			service.SourceInfo{Lang: domain.DefaultLanguage, TGUsername: "bob"},
		},
		{
			"unknown keys ignored",
			"lang=en;color=red",
			service.SourceInfo{Lang: "en"},
		},
		{
			"empty",
			"",
			service.SourceInfo{Lang: domain.DefaultLanguage},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ParseSourceInfo(tt.raw))
		})
	}
}

func TestSourceInfoRoundTrip(t *testing.T) {
	info := service.SourceInfo{Lang: "ru", TGUsername: "alice_tg", FullName: "Alice Smith"}
	assert.Equal(t, info, service.ParseSourceInfo(service.FormatSourceInfo(info)))
}

func TestRegistrationServiceCanRegister(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	bans := newMemBanStore()
	svc := service.NewRegistrationService(&fakeCommander{}, registrations, bans, testConfig())

	ok, err := svc.CanRegister(ctx, 101)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, bans.Ban(ctx, domain.Ban{TelegramID: 101}))
	ok, err = svc.CanRegister(ctx, 101)
	require.NoError(t, err)
	assert.False(t, ok, "banned user must not register")

	require.NoError(t, registrations.Add(ctx, 202, "bob"))
	ok, err = svc.CanRegister(ctx, 202)
	require.NoError(t, err)
	assert.False(t, ok, "registered user must not register twice")
}

func TestRegistrationServiceRegister(t *testing.T) {
	ctx := context.Background()
	commander := &fakeCommander{}
	registrations := newMemRegistrationStore()
	svc := service.NewRegistrationService(commander, registrations, newMemBanStore(), testConfig())

	result, err := svc.Register(ctx, registerParams(t, 101))
	require.NoError(t, err)
	assert.Empty(t, result.DBSyncError)

	require.Len(t, commander.created, 1)
	assert.Equal(t, "alice", commander.created[0].Username.String())

	registered, err := registrations.IsRegistered(ctx, 101)
	require.NoError(t, err)
	assert.True(t, registered)

	assert.Contains(t, result.Assets.Content, "<username>alice</username>")
	assert.Contains(t, result.Assets.Link, "tt://tt.example.org")
	assert.Equal(t, "Community Server.tt", result.Assets.Filename)
}

func TestRegistrationServiceRegisterServerRejection(t *testing.T) {
	ctx := context.Background()
	serverErr := &voice.ServerError{Code: 2011, Message: "duplicate"}
	commander := &fakeCommander{createErr: serverErr}
	registrations := newMemRegistrationStore()
	svc := service.NewRegistrationService(commander, registrations, newMemBanStore(), testConfig())

	_, err := svc.Register(ctx, registerParams(t, 101))
	require.Error(t, err)
	assert.True(t, voice.IsServerRejected(err))

	registered, err := registrations.IsRegistered(ctx, 101)
	require.NoError(t, err)
	assert.False(t, registered, "rejected registration must not be stored")
}

func TestRegistrationServiceRegisterDBSyncFailure(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	registrations.addErr = errors.New("write timeout")
	svc := service.NewRegistrationService(&fakeCommander{}, registrations, newMemBanStore(), testConfig())

	// The account exists on the server, so the flow must not fail outright.
	result, err := svc.Register(ctx, registerParams(t, 101))
	require.NoError(t, err)
	assert.Contains(t, result.DBSyncError, "write timeout")
}

func TestRegistrationServiceRegisterWithoutRegistrant(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	svc := service.NewRegistrationService(&fakeCommander{}, registrations, newMemBanStore(), testConfig())

	params := registerParams(t, 0)
	params.Source = domain.SourceWeb("203.0.113.9")

	result, err := svc.Register(ctx, params)
	require.NoError(t, err)
	assert.Empty(t, result.DBSyncError)
	assert.Empty(t, registrations.byTelegramID, "web registrations have no Telegram link")
}

func TestRegistrationServiceIsUsernameTaken(t *testing.T) {
	commander := &fakeCommander{existing: map[string]bool{"alice": true}}
	svc := service.NewRegistrationService(commander, newMemRegistrationStore(), newMemBanStore(), testConfig())

	taken, err := svc.IsUsernameTaken(context.Background(), mustUsername(t, "alice"))
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = svc.IsUsernameTaken(context.Background(), mustUsername(t, "bob"))
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestAdminServiceBanTelegramUser(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	bans := newMemBanStore()
	require.NoError(t, registrations.Add(ctx, 101, "alice"))

	svc := service.NewAdminService(&fakeCommander{}, registrations, bans)
	require.NoError(t, svc.BanTelegramUser(ctx, 101, 5, "spam"))

	ban, err := bans.Find(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "alice", ban.VoiceUsername, "linked voice account must be recorded")
	assert.Equal(t, domain.TelegramID(5), ban.BannedBy)
	assert.Equal(t, "spam", ban.Reason)
}

func TestAdminServiceBanVoiceUsername(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	bans := newMemBanStore()
	require.NoError(t, registrations.Add(ctx, 101, "alice"))

	svc := service.NewAdminService(&fakeCommander{}, registrations, bans)

	target, err := svc.BanVoiceUsername(ctx, "alice", 5, "abuse")
	require.NoError(t, err)
	assert.Equal(t, domain.TelegramID(101), target)

	_, err = svc.BanVoiceUsername(ctx, "ghost", 5, "abuse")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdminServiceUnbanAndDelete(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	bans := newMemBanStore()
	require.NoError(t, registrations.Add(ctx, 101, "alice"))
	require.NoError(t, bans.Ban(ctx, domain.Ban{TelegramID: 101}))

	svc := service.NewAdminService(&fakeCommander{}, registrations, bans)

	lifted, err := svc.Unban(ctx, 101)
	require.NoError(t, err)
	assert.True(t, lifted)

	lifted, err = svc.Unban(ctx, 101)
	require.NoError(t, err)
	assert.False(t, lifted)

	removed, err := svc.DeleteRegistration(ctx, 101)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestAdminServiceDeleteVoiceAccount(t *testing.T) {
	commander := &fakeCommander{}
	svc := service.NewAdminService(commander, newMemRegistrationStore(), newMemBanStore())

	require.NoError(t, svc.DeleteVoiceAccount(context.Background(), mustUsername(t, "alice")))
	require.Len(t, commander.deleted, 1)
	assert.Equal(t, "alice", commander.deleted[0].String())
}

func TestVoiceRegistry(t *testing.T) {
	ctx := context.Background()
	registrations := newMemRegistrationStore()
	bans := newMemBanStore()
	require.NoError(t, registrations.Add(ctx, 101, "alice"))

	registry := service.NewVoiceRegistry(registrations, bans)

	registrant, found, err := registry.FindByVoiceUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.TelegramID(101), registrant)

	_, found, err = registry.FindByVoiceUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, registry.Ban(ctx, 101, "alice", "Account deleted from TeamTalk server"))
	ban, err := bans.Find(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "Account deleted from TeamTalk server", ban.Reason)
	assert.Zero(t, ban.BannedBy.Int64(), "automatic bans have no admin")
}

func TestRegistrationServiceTryCreateClientZipWithoutTemplate(t *testing.T) {
	svc := service.NewRegistrationService(&fakeCommander{}, newMemRegistrationStore(), newMemBanStore(), testConfig())
	assets := service.BuildAssets(testConfig().Voice, "alice", "pass", "Alice")

	assert.False(t, svc.TryCreateClientZip(t.TempDir()+"/bundle.zip", assets))
}
