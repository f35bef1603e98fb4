// Package i18n holds the interface strings in English and French.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"

	"localwhisper/keys"
	"localwhisper/log"
)

const DefaultLocale = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

var supported = []string{"en", "fr"}

var (
	loadOnce   sync.Once
	loadErr    error
	localizers map[string]*goi18n.Localizer
)

func load() {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	localizers = make(map[string]*goi18n.Localizer, len(supported))
	for _, loc := range supported {
		name := loc + ".yaml"
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			loadErr = fmt.Errorf("read locale %s: %w", loc, err)
			return
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			loadErr = fmt.Errorf("parse locale %s: %w", loc, err)
			return
		}
		localizers[loc] = goi18n.NewLocalizer(bundle, loc)
	}
}

// Supported lists the selectable interface locales.
func Supported() []string {
	out := append([]string(nil), supported...)
	sort.Strings(out)
	return out
}

// Normalize maps an unknown or empty locale to DefaultLocale.
func Normalize(locale string) string {
	for _, s := range supported {
		if s == locale {
			return s
		}
	}
	return DefaultLocale
}

// T returns the string for id in locale, falling back to English and then to
// the id itself. data fills {{.Name}} placeholders.
func T(locale, id string, data map[string]any) string {
	loadOnce.Do(load)
	if loadErr != nil {
		log.Warnf("i18n: %v", loadErr)
		return id
	}
	locale = Normalize(locale)
	cfg := &goi18n.LocalizeConfig{MessageID: id, TemplateData: data}
	if s, err := localizers[locale].Localize(cfg); err == nil {
		return s
	}
	if locale != DefaultLocale {
		if s, err := localizers[DefaultLocale].Localize(cfg); err == nil {
			return s
		}
	}
	return id
}

// Labels adapts T for the shortcut display formatter.
func Labels(locale string) keys.LabelFunc {
	return func(id string) string {
		return T(locale, id, nil)
	}
}
