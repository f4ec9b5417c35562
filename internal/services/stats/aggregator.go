package stats

import (
	"context"
	"time"

	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/i18n"
	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/mx-roomstats-go/internal/models"
	"github.com/sirupsen/logrus"
)

// State is the terminal state of a statistics session.
type State string

const (
	// StateComplete means the full history was paginated.
	StateComplete State = "complete"
	// StateHalted means pagination stopped early; the snapshot covers
	// whatever history was materialized up to that point and is still a
	// usable result, not a failure.
	StateHalted State = "halted"
)

// ProgressFunc receives a fresh snapshot and the number of materialized
// events after each successful pagination step. It is invoked
// synchronously from the pagination loop.
type ProgressFunc func(snapshot *models.RoomStats, events int)

// Result is the outcome of one statistics session.
type Result struct {
	Stats  *models.RoomStats `json:"stats"`
	Events int               `json:"events"`
	Pages  int               `json:"pages"`
	State  State             `json:"state"`
}

// Aggregator computes room statistics snapshots and drives backward
// pagination of a room's full history, recomputing after each page so
// callers can render live progress.
type Aggregator struct {
	pageSize  int
	language  string
	names     NameResolver
	localizer *i18n.Localizer
	metrics   *middleware.Metrics
	logger    *logrus.Logger
	clock     func() time.Time
}

// NewAggregator creates a statistics aggregator
func NewAggregator(cfg *config.Config, names NameResolver, localizer *i18n.Localizer, metrics *middleware.Metrics, logger *logrus.Logger) *Aggregator {
	pageSize := cfg.Stats.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Aggregator{
		pageSize:  pageSize,
		language:  cfg.I18n.DefaultLanguage,
		names:     names,
		localizer: localizer,
		metrics:   metrics,
		logger:    logger,
		clock:     time.Now,
	}
}

// Snapshot computes statistics from the room's currently materialized
// window without any network activity.
func (a *Aggregator) Snapshot(ctx context.Context, client matrix.Client, roomID string) *models.RoomStats {
	if client == nil {
		return a.Compute(ctx, nil)
	}
	room := client.Room(roomID)
	if room == nil {
		return a.Compute(ctx, nil)
	}
	return a.Compute(ctx, room.LiveTimeline().Events())
}

// Collect computes an immediate snapshot, then paginates the room's full
// history backwards one page at a time, recomputing and reporting after
// each page. Pagination failure halts the loop and keeps the partial
// snapshot; no error reaches the caller beyond the Halted state.
func (a *Aggregator) Collect(ctx context.Context, client matrix.Client, roomID string, progress ProgressFunc) *Result {
	result := &Result{State: StateComplete}

	if client == nil {
		a.logger.Warn("Statistics requested without a client")
		result.Stats = a.Compute(ctx, nil)
		result.State = StateHalted
		a.metrics.RecordStatsSession(string(result.State))
		return result
	}

	room := client.Room(roomID)
	if room == nil {
		a.logger.WithField("room_id", roomID).Warn("Statistics requested for unknown room")
		result.Stats = a.Compute(ctx, nil)
		result.State = StateHalted
		a.metrics.RecordStatsSession(string(result.State))
		return result
	}

	timeline := room.LiveTimeline()

	// Immediate snapshot from whatever has synced so far, before any
	// network activity.
	window := timeline.Events()
	result.Stats = a.Compute(ctx, window)
	result.Events = len(window)

	for {
		if err := ctx.Err(); err != nil {
			a.logger.WithField("room_id", roomID).Info("Statistics session cancelled")
			result.State = StateHalted
			break
		}

		more, err := client.PaginateBack(ctx, timeline, a.pageSize)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"room_id": roomID,
				"pages":   result.Pages,
			}).Warn("Pagination failed, keeping partial statistics")
			result.State = StateHalted
			break
		}
		if !more {
			break
		}

		result.Pages++
		a.metrics.RecordStatsPage()

		window = timeline.Events()
		result.Stats = a.Compute(ctx, window)
		result.Events = len(window)

		if progress != nil {
			progress(result.Stats, result.Events)
		}
	}

	a.metrics.RecordStatsSession(string(result.State))
	a.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"events":  result.Events,
		"pages":   result.Pages,
		"state":   result.State,
	}).Info("Statistics session finished")

	return result
}
