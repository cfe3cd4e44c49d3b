package syncdoc

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
	bundleErr  error
)

func messages() (*i18n.Bundle, error) {
	bundleOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		for _, name := range []string{"locales/active.en.toml", "locales/active.fr.toml"} {
			if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
				bundleErr = fmt.Errorf("syncdoc: load %s: %w", name, err)
				return
			}
		}
		bundle = b
	})
	return bundle, bundleErr
}

// Languages lists the locales status messages are available in.
func Languages() []string {
	b, err := messages()
	if err != nil {
		return []string{language.English.String()}
	}
	tags := b.LanguageTags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// StatusMessage returns the short user-visible message for a result reason
// in locale, falling back to English.
func StatusMessage(reason Reason, locale string) string {
	id := "sync_ok"
	if reason != ReasonNone {
		id = "sync_" + string(reason)
	}
	return localize(locale, &i18n.LocalizeConfig{MessageID: id})
}

// ExportedMessage confirms that a sync file was written.
func ExportedMessage(filename, locale string) string {
	return localize(locale, &i18n.LocalizeConfig{
		MessageID:    "sync_exported",
		TemplateData: map[string]string{"Filename": filename},
	})
}

func localize(locale string, cfg *i18n.LocalizeConfig) string {
	b, err := messages()
	if err != nil {
		return cfg.MessageID
	}
	msg, err := i18n.NewLocalizer(b, locale, language.English.String()).Localize(cfg)
	if err != nil {
		return cfg.MessageID
	}
	return msg
}
