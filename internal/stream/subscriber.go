package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/tospichai/mac-uploader-server/internal/upload/id"
)

// Subscriber states. A subscriber only ever moves forward: a reconnecting
// client is a brand-new Subscriber with a new identity.
type State int32

const (
	// StateOpen means the transport is writable.
	StateOpen State = iota
	// StateClosing means a write failure or client close was observed.
	StateClosing
	// StateClosed means the transport is released and the subscriber is
	// out of the registry.
	StateClosed
)

// Send failure modes. Both drive the subscriber to CLOSED; neither is
// ever surfaced to an API caller.
var (
	errSubscriberClosed = errors.New("stream: subscriber closed")
	errSendTimeout      = errors.New("stream: send timed out")
)

// Subscriber represents one open streaming connection. It exclusively
// owns its transport: a bounded message channel drained by the HTTP
// handler. Delivery blocks only when the buffer is full, and a send that
// cannot complete within the timeout is treated as a dead transport.
type Subscriber struct {
	id    string
	topic string
	ch    chan Message
	done  chan struct{}

	mu              sync.Mutex
	state           State
	lastHeartbeatAt time.Time
}

func newSubscriber(topic string, buffer int) *Subscriber {
	return &Subscriber{
		id:    id.Generate("sub"),
		topic: topic,
		ch:    make(chan Message, buffer),
		done:  make(chan struct{}),
	}
}

// ID returns the opaque subscriber handle.
func (s *Subscriber) ID() string {
	return s.id
}

// Topic returns the topic this subscriber is registered under.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Messages is the receive side of the transport, drained by the
// connection handler.
func (s *Subscriber) Messages() <-chan Message {
	return s.ch
}

// Done is closed when the subscriber reaches CLOSED.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastHeartbeatAt returns when the last successful heartbeat was sent.
func (s *Subscriber) LastHeartbeatAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeatAt
}

func (s *Subscriber) markHeartbeat(at time.Time) {
	s.mu.Lock()
	s.lastHeartbeatAt = at
	s.mu.Unlock()
}

// send enqueues a message onto the transport. It fails when the
// subscriber is closed or when the buffer stays full past the timeout.
// The channel itself is never closed, so send can race close safely.
func (s *Subscriber) send(msg Message, timeout time.Duration) error {
	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return errSubscriberClosed
	case <-timer.C:
		return errSendTimeout
	}
}

// close drives the subscriber to CLOSED. It is idempotent: the second
// and later calls are no-ops.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return
	case StateOpen:
		s.state = StateClosing
	}
	s.state = StateClosed
	close(s.done)
}
