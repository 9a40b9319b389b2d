package gateway

import "time"

// FeedBinding maps a logical feed name to its provider-side feed key and
// optional group key. Bindings are immutable once provisioned; they are
// created lazily the first time a feed is used.
type FeedBinding struct {
	Name     string `json:"name"`
	FeedKey  string `json:"feed_key"`
	GroupKey string `json:"group_key,omitempty"`
}

// Feed is a provider-side data channel (sensor value or actuator input).
type Feed struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Group is a provider-side container of related feeds.
type Group struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Reading is a single data point from a feed.
//
// Value is kept as the provider's string representation; callers parse it
// to the type they expect (the pump feed carries "1"/"0", sensor feeds
// carry decimal numbers).
type Reading struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Transport names recorded in logs and metrics for each served call.
const (
	TransportPubSub = "pubsub"
	TransportREST   = "rest"
)
