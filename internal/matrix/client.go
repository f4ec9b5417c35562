package matrix

import "context"

// Client is the slice of the homeserver client this module consumes.
// The full sync machinery stays with the host application; the core only
// needs credentials, room lookup and backward pagination.
type Client interface {
	BaseURL() string
	AccessToken() string

	// Room returns a handle for a known room, or nil.
	Room(id string) Room

	// PaginateBack loads up to limit older events into the timeline's
	// window, returning false when no further pages exist.
	PaginateBack(ctx context.Context, tl Timeline, limit int) (bool, error)
}

// Room is a handle to a single room.
type Room interface {
	ID() string
	LiveTimeline() Timeline
}

// Timeline is an ordered in-memory window of a room's events, oldest
// first. Backward pagination prepends older events to the front.
type Timeline interface {
	Events() []Event
}
