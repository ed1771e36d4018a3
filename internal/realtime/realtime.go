// Package realtime delivers snapshots of the student list to listeners.
//
// A Snapshot is always the whole list, newest first, and is
// authoritative: a listener replaces whatever it showed before. There is
// no diffing and no conflict resolution; the last snapshot wins.
package realtime

import (
	"context"
	"sync"

	"github.com/aanand-mishra/student-archive/internal/types"
)

// Snapshot is the full student list at a point in time.
type Snapshot struct {
	Students []types.Student `json:"students"`
	// At is when the snapshot was taken, in milliseconds since the epoch.
	At int64 `json:"at"`
}

// Publisher pushes a snapshot to listeners.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Hub fans snapshots out to in-process subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Snapshot]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{})}
}

// Subscribe registers a listener. The returned channel holds at most one
// pending snapshot; cancel unregisters the listener and closes the
// channel.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			// Close may have got there first
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close ends every subscription and makes later ones start closed.
// Listeners see their channel close.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish never blocks: a subscriber that has not consumed the previous
// snapshot gets it replaced by this one.
func (h *Hub) Publish(_ context.Context, snap Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the stale one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
