package session

import "time"

// Session is the unit of shared state: one device roster plus one message
// log, identified by a caller-chosen id.
//
// Timestamps are owned by the Store: CreatedAt is set once on Ensure and
// UpdatedAt refreshed on every Save.
type Session struct {
	SessionID string    `json:"sessionId"`
	Devices   []Device  `json:"devices"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Device is one participant record in a session's roster.
//
// At most one Device per ID exists in a roster. A repeat upsert with the
// same ID replaces the prior record via remove-then-append, so the most
// recently touched device always sits last. That reordering is a documented
// policy, not an accident (see UpsertDevice).
type Device struct {
	ID           string    `json:"id"`
	UserAgent    string    `json:"userAgent"`
	Name         string    `json:"name,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// MessageStatus tags for MessageStatus.Type.
const (
	StatusLoading = "loading"
	StatusLoaded  = "loaded"
	StatusError   = "error"
)

// MessageStatus is a tagged variant over {loading, loaded, error}.
//
// Progress is relevant when Type is "loading" and Error when Type is
// "error". The correlation is a convention carried over from the original
// wire format and is deliberately not validated: a malformed status is
// stored as given.
type MessageStatus struct {
	Type     string   `json:"type"`
	Progress *float64 `json:"progress,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Message is one immutable, ordered entry in a session's log.
//
// ID is supplied by the caller and not checked for uniqueness; the log is
// strictly append-only and keeps insertion order.
type Message struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type"`
	Sender     string        `json:"sender"`
	SenderName string        `json:"senderName"`
	SentAt     time.Time     `json:"sentAt"`
	Status     MessageStatus `json:"status"`
	Text       string        `json:"text,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	FileSize   *int64        `json:"fileSize,omitempty"`
}
