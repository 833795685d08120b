package stream

import (
	"log/slog"
	"sync"
	"time"
)

// Hub is the topic registry: goroutine-safe bookkeeping of who is
// listening to what. It is the single shared mutable structure of the
// streaming layer; everything else holds only immutable configuration.
type Hub struct {
	logger *slog.Logger

	heartbeatInterval time.Duration
	sendTimeout       time.Duration
	buffer            int

	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHeartbeatInterval sets the per-subscriber heartbeat period.
func WithHeartbeatInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeatInterval = d
		}
	}
}

// WithSendTimeout sets how long a delivery may block on a full
// subscriber buffer before the subscriber is treated as dead.
func WithSendTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.sendTimeout = d
		}
	}
}

// WithBuffer sets the per-subscriber message queue depth.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
		sendTimeout:       5 * time.Second,
		buffer:            16,
		topics:            make(map[string]map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber under topic. The subscriber
// immediately receives a connected message, before any photo update, and
// its heartbeat loop is started.
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := newSubscriber(topic, h.buffer)

	h.mu.Lock()
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.topics[topic] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	// The buffer is empty at this point, so the connected ack cannot
	// fail or block.
	_ = sub.send(Message{Kind: KindConnected, Data: connectedBody{Topic: topic}}, h.sendTimeout)

	go h.heartbeatLoop(sub)

	h.logger.Debug("subscriber joined",
		slog.String("topic", topic),
		slog.String("subscriber_id", sub.ID()),
	)

	return sub
}

// Unsubscribe removes a subscriber and closes its transport. It is
// idempotent: removing an already-closed subscriber is a no-op. When a
// topic's subscriber set becomes empty the topic entry itself is
// dropped.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.topics[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.topics, sub.topic)
		}
	}
	h.mu.Unlock()

	sub.close()

	h.logger.Debug("subscriber left",
		slog.String("topic", sub.topic),
		slog.String("subscriber_id", sub.ID()),
	)
}

// Snapshot returns a copy of the current subscriber set for a topic,
// safe to iterate while subscriptions change concurrently.
func (h *Hub) Snapshot(topic string) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.topics[topic]
	if !ok {
		return nil
	}
	subs := make([]*Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the number of live subscribers for a topic. For
// operational visibility only, never for control flow.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Topics returns the topics that currently have at least one subscriber.
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	topics := make([]string, 0, len(h.topics))
	for topic := range h.topics {
		topics = append(topics, topic)
	}
	return topics
}

// Close unsubscribes every remaining subscriber. Used at shutdown so
// open stream handlers observe Done and release their connections.
func (h *Hub) Close() {
	h.mu.Lock()
	var subs []*Subscriber
	for _, set := range h.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.topics = make(map[string]map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// heartbeatLoop pings one subscriber on a fixed period. A failed or
// timed-out ping is the primary mechanism for reclaiming connections
// whose client vanished without a clean close. The ticker is stopped
// exactly once, when the loop exits on CLOSED.
func (h *Hub) heartbeatLoop(sub *Subscriber) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			if err := sub.send(Message{Kind: KindHeartbeat}, h.sendTimeout); err != nil {
				h.logger.Debug("heartbeat failed, pruning subscriber",
					slog.String("topic", sub.Topic()),
					slog.String("subscriber_id", sub.ID()),
					slog.String("error", err.Error()),
				)
				h.Unsubscribe(sub)
				return
			}
			sub.markHeartbeat(time.Now())
		}
	}
}
