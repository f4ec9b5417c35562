package stats

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/models"
	"github.com/mx-roomstats-go/pkg/preview"
)

const (
	dayWindow       = 14
	hourBuckets     = 24
	longestMinWords = 5
	previewMaxRunes = 120
)

// NameResolver maps a sender ID to a display name. The second return is
// false when no cached or fetchable name exists.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, bool)
}

// Compute builds a statistics snapshot from the given event window. It is
// a pure function of the window and the aggregator's clock; it carries no
// state between calls, so it stays correct under arbitrary pagination
// ordering and late-arriving redactions.
func (a *Aggregator) Compute(ctx context.Context, events []matrix.Event) *models.RoomStats {
	start := time.Now()
	now := a.clock()

	snapshot := &models.RoomStats{
		TopSenders:     []models.SenderStats{},
		HourlyActivity: make([]int, hourBuckets),
	}

	// 14 calendar-day buckets ending today, local time.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayIndex := make(map[string]int, dayWindow)
	daily := make([]models.DayActivity, dayWindow)
	for i := 0; i < dayWindow; i++ {
		day := today.AddDate(0, 0, i-(dayWindow-1))
		date := day.Format("2006-01-02")
		daily[i] = models.DayActivity{
			Date:  date,
			Label: a.localizer.DayLabel(a.language, day),
		}
		dayIndex[date] = i
	}

	type senderBucket struct {
		messages int
		words    int
	}
	senders := make(map[string]*senderBucket)
	senderOrder := make([]string, 0)

	var longest matrix.Event
	longestWords := 0

	for _, ev := range events {
		if !qualifies(ev) {
			continue
		}

		words := wordCount(ev.Content().Body)

		bucket, ok := senders[ev.Sender()]
		if !ok {
			bucket = &senderBucket{}
			senders[ev.Sender()] = bucket
			senderOrder = append(senderOrder, ev.Sender())
		}
		bucket.messages++
		bucket.words += words

		snapshot.TotalMessages++
		snapshot.TotalWords += words

		ts := ev.Timestamp().In(now.Location())
		if i, ok := dayIndex[ts.Format("2006-01-02")]; ok {
			daily[i].Messages++
		}
		snapshot.HourlyActivity[ts.Hour()]++

		// Ties keep the first message found.
		if words > longestWords {
			longest = ev
			longestWords = words
		}
	}

	for _, id := range senderOrder {
		bucket := senders[id]
		avg := 0
		if bucket.messages > 0 {
			avg = int(math.Round(float64(bucket.words) / float64(bucket.messages)))
		}
		snapshot.TopSenders = append(snapshot.TopSenders, models.SenderStats{
			UserID:      id,
			DisplayName: a.displayName(ctx, id),
			Messages:    bucket.messages,
			Words:       bucket.words,
			AvgWords:    avg,
		})
	}
	sort.SliceStable(snapshot.TopSenders, func(i, j int) bool {
		return snapshot.TopSenders[i].Messages > snapshot.TopSenders[j].Messages
	})

	snapshot.UniqueSenders = len(senders)
	if snapshot.TotalMessages > 0 {
		snapshot.AvgWordsPerMessage = int(math.Round(float64(snapshot.TotalWords) / float64(snapshot.TotalMessages)))
	}
	snapshot.DailyActivity = daily

	peak := 0
	for hour, count := range snapshot.HourlyActivity {
		if count > snapshot.HourlyActivity[peak] {
			peak = hour
		}
	}
	snapshot.PeakHour = peak

	if longest != nil && longestWords > longestMinWords {
		snapshot.LongestMessage = &models.LongestMessage{
			Sender:      longest.Sender(),
			DisplayName: a.displayName(ctx, longest.Sender()),
			Words:       longestWords,
			Preview:     preview.Text(longest.Content().Body, previewMaxRunes),
		}
	}

	a.metrics.RecordStatsCompute(time.Since(start))

	return snapshot
}

// qualifies reports whether an event counts toward statistics: a textual,
// non-redacted message that is not an edit of an earlier event.
func qualifies(ev matrix.Event) bool {
	if ev.Type() != matrix.EventTypeMessage || ev.Redacted() {
		return false
	}
	content := ev.Content()
	if content.IsReplacement() {
		return false
	}
	return content.MsgType.Textual()
}

func wordCount(body string) int {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return 0
	}
	return len(strings.Fields(trimmed))
}

func (a *Aggregator) displayName(ctx context.Context, userID string) string {
	if a.names != nil {
		if name, ok := a.names.DisplayName(ctx, userID); ok && name != "" {
			return name
		}
	}
	return matrix.LocalPart(userID)
}
