package matrix

import "time"

// EventTypeMessage is the event type carrying room messages.
const EventTypeMessage = "m.room.message"

// RelReplace marks an event content as an edit of an earlier event.
const RelReplace = "m.replace"

// MessageType identifies the msgtype of a message event.
type MessageType string

const (
	MsgText     MessageType = "m.text"
	MsgEmote    MessageType = "m.emote"
	MsgNotice   MessageType = "m.notice"
	MsgImage    MessageType = "m.image"
	MsgFile     MessageType = "m.file"
	MsgAudio    MessageType = "m.audio"
	MsgVideo    MessageType = "m.video"
	MsgLocation MessageType = "m.location"
)

// Textual reports whether the message carries a human-written text body.
// Only textual messages participate in room statistics.
func (t MessageType) Textual() bool {
	switch t {
	case MsgText, MsgEmote, MsgNotice:
		return true
	}
	return false
}

// RelatesTo mirrors the m.relates_to field of message content.
type RelatesTo struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
}

// Content is the parsed content of a message event.
type Content struct {
	MsgType   MessageType `json:"msgtype"`
	Body      string      `json:"body"`
	URL       string      `json:"url,omitempty"`
	RelatesTo *RelatesTo  `json:"m.relates_to,omitempty"`
}

// IsReplacement reports whether the content edits an earlier event.
func (c Content) IsReplacement() bool {
	return c.RelatesTo != nil && c.RelatesTo.RelType == RelReplace
}

// Event is a read-only view of a single timeline event.
type Event interface {
	ID() string
	Type() string
	Sender() string
	Timestamp() time.Time
	Redacted() bool
	Content() Content
}
