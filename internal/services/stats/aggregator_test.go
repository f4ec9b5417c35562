package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptTimeline is a mutable event window owned by scriptClient.
type scriptTimeline struct {
	events []matrix.Event
}

func (t *scriptTimeline) Events() []matrix.Event {
	out := make([]matrix.Event, len(t.events))
	copy(out, t.events)
	return out
}

type page struct {
	events []matrix.Event
	more   bool
	err    error
}

// scriptClient plays back a scripted pagination sequence.
type scriptClient struct {
	timeline *scriptTimeline
	script   []page
	calls    int
}

func (c *scriptClient) BaseURL() string     { return "http://homeserver.test" }
func (c *scriptClient) AccessToken() string { return "secret" }

func (c *scriptClient) Room(id string) matrix.Room {
	return &scriptRoom{id: id, timeline: c.timeline}
}

func (c *scriptClient) PaginateBack(ctx context.Context, tl matrix.Timeline, limit int) (bool, error) {
	step := c.script[c.calls]
	c.calls++

	if step.err != nil {
		return false, step.err
	}
	if !step.more {
		return false, nil
	}
	c.timeline.events = append(step.events, c.timeline.events...)
	return true, nil
}

type scriptRoom struct {
	id       string
	timeline *scriptTimeline
}

func (r *scriptRoom) ID() string                    { return r.id }
func (r *scriptRoom) LiveTimeline() matrix.Timeline { return r.timeline }

func TestCollect_PaginatesToCompletion(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	client := &scriptClient{
		timeline: &scriptTimeline{events: []matrix.Event{
			message("@a:x.org", "live message", fixedNow),
		}},
		script: []page{
			{events: []matrix.Event{message("@b:x.org", "older one", fixedNow.AddDate(0, 0, -1))}, more: true},
			{events: []matrix.Event{message("@c:x.org", "oldest of all", fixedNow.AddDate(0, 0, -2))}, more: true},
			{more: false},
		},
	}

	progressCalls := 0
	var lastReported int
	result := aggregator.Collect(context.Background(), client, "!room:x.org", func(snapshot *models.RoomStats, events int) {
		progressCalls++
		lastReported = events
		require.NotNil(t, snapshot)
	})

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Events)
	assert.Equal(t, 2, progressCalls, "one progress report per successful page")
	assert.Equal(t, 3, lastReported)
	assert.Equal(t, 3, result.Stats.TotalMessages)
	assert.Equal(t, 3, client.calls)
}

func TestCollect_HaltsOnPaginationError(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	client := &scriptClient{
		timeline: &scriptTimeline{},
		script: []page{
			{events: []matrix.Event{
				message("@a:x.org", "first page msg", fixedNow),
				message("@b:x.org", "another first page msg", fixedNow),
			}, more: true},
			{err: errors.New("connection reset")},
		},
	}

	progressCalls := 0
	result := aggregator.Collect(context.Background(), client, "!room:x.org", func(snapshot *models.RoomStats, events int) {
		progressCalls++
	})

	assert.Equal(t, StateHalted, result.State)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, progressCalls)
	assert.Equal(t, 2, result.Events, "partial results from the first page are retained")
	require.NotNil(t, result.Stats)
	assert.Equal(t, 2, result.Stats.TotalMessages)
}

func TestCollect_ImmediateSnapshotBeforePagination(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	client := &scriptClient{
		timeline: &scriptTimeline{events: []matrix.Event{
			message("@a:x.org", "already synced", fixedNow),
		}},
		script: []page{{more: false}},
	}

	result := aggregator.Collect(context.Background(), client, "!room:x.org", nil)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, 0, result.Pages)
	assert.Equal(t, 1, result.Events)
	assert.Equal(t, 1, result.Stats.TotalMessages)
}

func TestCollect_CancelledContextHalts(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())

	client := &scriptClient{
		timeline: &scriptTimeline{},
		script: []page{
			{events: []matrix.Event{message("@a:x.org", "page one", fixedNow)}, more: true},
			{events: []matrix.Event{message("@b:x.org", "page two", fixedNow)}, more: true},
			{more: false},
		},
	}

	progressCalls := 0
	result := aggregator.Collect(ctx, client, "!room:x.org", func(snapshot *models.RoomStats, events int) {
		progressCalls++
		cancel() // caller walks away after the first page
	})

	assert.Equal(t, StateHalted, result.State)
	assert.Equal(t, 1, progressCalls)
	assert.Equal(t, 1, result.Stats.TotalMessages)
}

func TestCollect_NilClientAndUnknownRoom(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	result := aggregator.Collect(context.Background(), nil, "!room:x.org", nil)
	assert.Equal(t, StateHalted, result.State)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 0, result.Stats.TotalMessages)

	result = aggregator.Collect(context.Background(), nilRoomClient{}, "!room:x.org", nil)
	assert.Equal(t, StateHalted, result.State)
	assert.Equal(t, 0, result.Stats.TotalMessages)
}

type nilRoomClient struct{}

func (nilRoomClient) BaseURL() string            { return "" }
func (nilRoomClient) AccessToken() string        { return "" }
func (nilRoomClient) Room(id string) matrix.Room { return nil }
func (nilRoomClient) PaginateBack(ctx context.Context, tl matrix.Timeline, limit int) (bool, error) {
	return false, nil
}

func TestSnapshot_NoNetworkActivity(t *testing.T) {
	aggregator := newTestAggregator(t, nil)

	client := &scriptClient{
		timeline: &scriptTimeline{events: []matrix.Event{
			message("@a:x.org", "hello there", fixedNow),
		}},
	}

	snapshot := aggregator.Snapshot(context.Background(), client, "!room:x.org")
	assert.Equal(t, 1, snapshot.TotalMessages)
	assert.Equal(t, 0, client.calls, "snapshot must not paginate")
}
