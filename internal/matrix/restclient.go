package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RestClient is a thin adapter over the homeserver client-server API. It
// implements just enough of Client for the statistics and media services:
// backward pagination of a room's message history and profile lookups.
// Live sync is out of scope; the timeline window starts empty and grows
// as pagination walks into history.
type RestClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logrus.Logger

	mu    sync.Mutex
	rooms map[string]*restRoom
}

// NewRestClient creates a client adapter for the given homeserver.
func NewRestClient(baseURL, accessToken string, logger *logrus.Logger) *RestClient {
	return &RestClient{
		baseURL: baseURL,
		token:   accessToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		rooms:  make(map[string]*restRoom),
	}
}

// BaseURL returns the homeserver base URL.
func (c *RestClient) BaseURL() string {
	return c.baseURL
}

// AccessToken returns the bearer credential.
func (c *RestClient) AccessToken() string {
	return c.token
}

// Room returns a handle for the given room ID, creating it on first use.
func (c *RestClient) Room(id string) Room {
	if id == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[id]
	if !ok {
		room = &restRoom{
			id:       id,
			timeline: &restTimeline{roomID: id},
		}
		c.rooms[id] = room
	}
	return room
}

// PaginateBack fetches one page of older events into the timeline window.
func (c *RestClient) PaginateBack(ctx context.Context, tl Timeline, limit int) (bool, error) {
	window, ok := tl.(*restTimeline)
	if !ok {
		return false, fmt.Errorf("paginate: timeline not owned by this client")
	}
	if window.exhausted() {
		return false, nil
	}

	query := url.Values{}
	query.Set("dir", "b")
	query.Set("limit", fmt.Sprintf("%d", limit))
	if from := window.token(); from != "" {
		query.Set("from", from)
	}

	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/messages?%s",
		c.baseURL, url.PathEscape(window.roomID), query.Encode())

	var page struct {
		Chunk []rawEvent `json:"chunk"`
		End   string     `json:"end"`
	}
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return false, err
	}

	if len(page.Chunk) == 0 || page.End == "" {
		window.markExhausted()
		return false, nil
	}

	// dir=b pages arrive newest-first; the window keeps oldest-first order.
	events := make([]Event, 0, len(page.Chunk))
	for i := len(page.Chunk) - 1; i >= 0; i-- {
		events = append(events, page.Chunk[i].toEvent())
	}
	window.prepend(events, page.End)

	c.logger.WithFields(logrus.Fields{
		"room":   window.roomID,
		"events": len(events),
	}).Debug("Paginated room history")

	return true, nil
}

// Profile fetches a user's display name and avatar content identifier.
func (c *RestClient) Profile(ctx context.Context, userID string) (displayName, avatarURI string, err error) {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/profile/%s",
		c.baseURL, url.PathEscape(userID))

	var profile struct {
		DisplayName string `json:"displayname"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := c.getJSON(ctx, endpoint, &profile); err != nil {
		return "", "", err
	}
	return profile.DisplayName, profile.AvatarURL, nil
}

func (c *RestClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("homeserver returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type restRoom struct {
	id       string
	timeline *restTimeline
}

func (r *restRoom) ID() string             { return r.id }
func (r *restRoom) LiveTimeline() Timeline { return r.timeline }

type restTimeline struct {
	roomID string

	mu        sync.Mutex
	events    []Event
	prevBatch string
	ended     bool
}

// Events returns a snapshot of the current window, oldest first.
func (t *restTimeline) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *restTimeline) prepend(older []Event, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(older, t.events...)
	t.prevBatch = token
}

func (t *restTimeline) token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prevBatch
}

func (t *restTimeline) exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

func (t *restTimeline) markExhausted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
}

type rawEvent struct {
	EventID  string          `json:"event_id"`
	Type     string          `json:"type"`
	Sender   string          `json:"sender"`
	OriginTS int64           `json:"origin_server_ts"`
	Content  json.RawMessage `json:"content"`
	Unsigned struct {
		RedactedBecause json.RawMessage `json:"redacted_because"`
	} `json:"unsigned"`
}

func (e rawEvent) toEvent() Event {
	var content Content
	// A redacted or malformed content blob decodes to the zero value,
	// which the statistics filter already excludes.
	_ = json.Unmarshal(e.Content, &content)

	return &restEvent{
		id:       e.EventID,
		typ:      e.Type,
		sender:   e.Sender,
		ts:       time.UnixMilli(e.OriginTS),
		redacted: len(e.Unsigned.RedactedBecause) > 0,
		content:  content,
	}
}

type restEvent struct {
	id       string
	typ      string
	sender   string
	ts       time.Time
	redacted bool
	content  Content
}

func (e *restEvent) ID() string           { return e.id }
func (e *restEvent) Type() string         { return e.typ }
func (e *restEvent) Sender() string       { return e.sender }
func (e *restEvent) Timestamp() time.Time { return e.ts }
func (e *restEvent) Redacted() bool       { return e.redacted }
func (e *restEvent) Content() Content     { return e.content }
