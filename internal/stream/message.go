// Package stream provides the in-process fan-out layer for live gallery
// updates: a topic-keyed registry of subscribers, a broadcast dispatcher,
// and per-subscriber heartbeats that reclaim dead connections.
//
// The hub is process-local; cross-node fan-out is deliberately out of
// scope, and a viewer that reconnects catches up by re-pulling the photo
// list rather than by event replay.
package stream

// Kind names the event types a subscriber can receive.
type Kind string

const (
	// KindConnected acknowledges a new subscription. It is always the
	// first message on a fresh connection.
	KindConnected Kind = "connected"
	// KindHeartbeat is the periodic per-subscriber liveness ping.
	KindHeartbeat Kind = "heartbeat"
	// KindPhotoUpdate announces a freshly stored upload.
	KindPhotoUpdate Kind = "photo_update"
)

// Message is one event handed to a subscriber. It is immutable once
// constructed; Data must be JSON-serializable.
type Message struct {
	Kind Kind
	Data any
}

// connectedBody is the payload of a KindConnected message.
type connectedBody struct {
	Topic string `json:"topic"`
}

// photoBody is the payload envelope of a KindPhotoUpdate message.
type photoBody struct {
	Photo any `json:"photo"`
}
