package stats

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/i18n"
	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fixedNow is the reference clock for all statistics tests.
var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeEvent struct {
	id       string
	typ      string
	sender   string
	ts       time.Time
	redacted bool
	content  matrix.Content
}

func (e *fakeEvent) ID() string              { return e.id }
func (e *fakeEvent) Type() string            { return e.typ }
func (e *fakeEvent) Sender() string          { return e.sender }
func (e *fakeEvent) Timestamp() time.Time    { return e.ts }
func (e *fakeEvent) Redacted() bool          { return e.redacted }
func (e *fakeEvent) Content() matrix.Content { return e.content }

func message(sender, body string, ts time.Time) *fakeEvent {
	return &fakeEvent{
		id:     "$" + sender + ts.String(),
		typ:    matrix.EventTypeMessage,
		sender: sender,
		ts:     ts,
		content: matrix.Content{
			MsgType: matrix.MsgText,
			Body:    body,
		},
	}
}

func newTestAggregator(t *testing.T, names NameResolver) *Aggregator {
	t.Helper()

	cfg := &config.Config{
		Stats: config.StatsConfig{PageSize: 100},
		I18n:  config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en"}},
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	aggregator := NewAggregator(cfg, names, localizer, middleware.NewMetrics(), logger)
	aggregator.clock = func() time.Time { return fixedNow }
	return aggregator
}

// staticNames resolves display names from a fixed map.
type staticNames map[string]string

func (n staticNames) DisplayName(ctx context.Context, userID string) (string, bool) {
	name, ok := n[userID]
	return name, ok
}
