package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer from the embedded locale files
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	// Load language files
	for _, lang := range cfg.Languages {
		path := fmt.Sprintf("locales/%s.json", lang)
		if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}
	if localizer == nil {
		return messageID
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// weekday message IDs, indexed by time.Weekday
var weekdayIDs = [7]string{
	MsgWeekdaySun,
	MsgWeekdayMon,
	MsgWeekdayTue,
	MsgWeekdayWed,
	MsgWeekdayThu,
	MsgWeekdayFri,
	MsgWeekdaySat,
}

// WeekdayShort returns the localized short name for a weekday,
// falling back to English when the locale has no entry.
func (l *Localizer) WeekdayShort(lang string, wd time.Weekday) string {
	id := weekdayIDs[wd]
	if msg := l.Get(lang, id, nil); msg != id {
		return msg
	}
	return wd.String()[:3]
}

// DayLabel formats a day-bucket label, e.g. "Mon 25".
func (l *Localizer) DayLabel(lang string, t time.Time) string {
	return fmt.Sprintf("%s %d", l.WeekdayShort(lang, t.Weekday()), t.Day())
}

// Message IDs
const (
	MsgWeekdaySun = "weekday_sun"
	MsgWeekdayMon = "weekday_mon"
	MsgWeekdayTue = "weekday_tue"
	MsgWeekdayWed = "weekday_wed"
	MsgWeekdayThu = "weekday_thu"
	MsgWeekdayFri = "weekday_fri"
	MsgWeekdaySat = "weekday_sat"
	MsgStatsError = "stats_error"
	MsgMediaError = "media_error"
	MsgNotFound   = "not_found"
)
