package models

import "time"

const (
	EventFeedRefreshed = "feed.refreshed"
	EventFeedFailed    = "feed.failed"
	EventScalperState  = "scalper.state"
)

// Event is the envelope published to the event bus.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Key     string      `json:"key"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// FeedEventPayload describes a feed refresh outcome.
type FeedEventPayload struct {
	Kind      string    `json:"kind"`
	Params    string    `json:"params"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ScalperEventPayload describes a session state transition.
type ScalperEventPayload struct {
	State  string `json:"state"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason,omitempty"`
}
