package stream

import (
	"log/slog"
	"time"
)

// Dispatcher fans one message out to every current subscriber of a
// topic. It holds no mutable state of its own and is safe for
// concurrent use.
type Dispatcher struct {
	hub         *Hub
	logger      *slog.Logger
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher over the given hub.
func NewDispatcher(hub *Hub, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hub:         hub,
		logger:      logger,
		sendTimeout: hub.sendTimeout,
	}
}

// Broadcast delivers msg to every subscriber registered under topic at
// call time. A subscriber whose delivery fails is pruned; failures are
// per-subscriber and never abort delivery to the rest. Zero subscribers
// is a cheap no-op, not an error.
//
// Deliveries enqueue onto each subscriber's bounded buffer, so within
// one topic a given subscriber sees broadcasts in call order.
func (d *Dispatcher) Broadcast(topic string, msg Message) {
	subs := d.hub.Snapshot(topic)
	if len(subs) == 0 {
		return
	}

	var pruned int
	for _, sub := range subs {
		if err := sub.send(msg, d.sendTimeout); err != nil {
			d.hub.Unsubscribe(sub)
			pruned++
		}
	}

	d.logger.Debug("broadcast delivered",
		slog.String("topic", topic),
		slog.String("kind", string(msg.Kind)),
		slog.Int("subscribers", len(subs)-pruned),
		slog.Int("pruned", pruned),
	)
}

// NotifyUpload wraps a freshly stored photo in a photo_update message
// and broadcasts it. The payload must already reference durably stored
// artifacts; the upload pipeline guarantees that ordering.
func (d *Dispatcher) NotifyUpload(topic string, photo any) {
	d.Broadcast(topic, Message{
		Kind: KindPhotoUpdate,
		Data: photoBody{Photo: photo},
	})
}
