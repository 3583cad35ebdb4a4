// Package i18n resolves user-facing message keys against embedded YAML
// catalogs. Lookups fall back from the exact tag to its base language and
// then to English; a key missing everywhere resolves to itself, which
// callers can detect to hide untranslated UI.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Bundle holds every loaded message catalog.
type Bundle struct {
	catalogs map[string]map[string]string
}

// New loads the embedded catalogs.
func New() (*Bundle, error) {
	return load(localeFS, "locales")
}

func load(fsys fs.FS, dir string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}

	b := &Bundle{catalogs: make(map[string]map[string]string, len(entries))}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		catalog := make(map[string]string)
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		lang := strings.TrimSuffix(name, ".yaml")
		b.catalogs[lang] = catalog
	}

	if _, ok := b.catalogs[domain.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language catalog %q is missing", domain.DefaultLanguage)
	}
	return b, nil
}

// T resolves key for lang. A key absent from every catalog resolves to the
// key itself.
func (b *Bundle) T(lang domain.LanguageCode, key string) string {
	for _, candidate := range []string{lang.String(), lang.Base(), domain.DefaultLanguage} {
		if catalog, ok := b.catalogs[candidate]; ok {
			if msg, ok := catalog[key]; ok {
				return msg
			}
		}
	}
	return key
}

// TArgs resolves key for lang and substitutes {name} placeholders with the
// given arguments.
func (b *Bundle) TArgs(lang domain.LanguageCode, key string, args map[string]string) string {
	msg := b.T(lang, key)
	for name, value := range args {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// Has reports whether a catalog exists for lang, exactly or by base tag.
func (b *Bundle) Has(lang domain.LanguageCode) bool {
	if _, ok := b.catalogs[lang.String()]; ok {
		return true
	}
	_, ok := b.catalogs[lang.Base()]
	return ok
}

// Available returns every catalog language, sorted.
func (b *Bundle) Available() []domain.LanguageCode {
	langs := make([]domain.LanguageCode, 0, len(b.catalogs))
	for lang := range b.catalogs {
		langs = append(langs, domain.LanguageCode(lang))
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
