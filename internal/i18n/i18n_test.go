package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

func newTestBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := New()
	require.NoError(t, err)
	return b
}

func TestBundleResolvesKnownKey(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, "User", b.T("en", "tt-account-user"))
	assert.Equal(t, "Пользователь", b.T("ru", "tt-account-user"))
}

func TestBundleFallsBackToEnglish(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, b.T("en", "tt-account-user"), b.T("de", "tt-account-user"))
}

func TestBundleRegionTagUsesBaseLanguage(t *testing.T) {
	b := newTestBundle(t)

	lang, ok := domain.ParseLanguageCode("ru_RU")
	require.True(t, ok)
	assert.Equal(t, "Пользователь", b.T(lang, "tt-account-user"))
}

func TestBundleMissingKeyResolvesToItself(t *testing.T) {
	b := newTestBundle(t)

	assert.Equal(t, "no-such-key", b.T("en", "no-such-key"))
}

func TestBundleInterpolatesArguments(t *testing.T) {
	b := newTestBundle(t)

	got := b.TArgs("en", "tt-account-removed-banned", map[string]string{
		"username": "alice",
		"tg_id":    "101",
	})
	assert.Equal(t, `TeamTalk: account "alice" was removed; the linked Telegram user 101 has been banned.`, got)
}

func TestBundleAvailableLanguages(t *testing.T) {
	b := newTestBundle(t)

	langs := b.Available()
	assert.Contains(t, langs, domain.LanguageCode("en"))
	assert.Contains(t, langs, domain.LanguageCode("ru"))
	assert.True(t, b.Has("en"))
	assert.True(t, b.Has("ru"))
	assert.False(t, b.Has("zz"))
}
