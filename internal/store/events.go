package store

import (
	"context"
	"sync"
	"time"
)

// ChangeEvent describes one observed state change for a voice.
type ChangeEvent struct {
	Sequence  uint64        `json:"seq"`
	Timestamp time.Time     `json:"ts"`
	VoiceRef  string        `json:"voice"`
	Status    Status        `json:"status"`
	Phase     Phase         `json:"phase,omitempty"`
	Percent   float64       `json:"percent,omitempty"`
	Message   string        `json:"message,omitempty"`
	Reason    FailureReason `json:"reason,omitempty"`
}

// Hub stores recent change events and wakes waiters when new events arrive.
// Reads never block writers; observers may see transient intermediate states.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []ChangeEvent
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory change-event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a new change event to the hub.
func (h *Hub) Publish(evt ChangeEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns all events with sequence greater than since. When wait is
// true, Fetch blocks until at least one event is available or the context
// ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]ChangeEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, nil
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, since, err
			}
		}
		h.cond.Wait()
	}
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]ChangeEvent, uint64) {
	next := since
	var events []ChangeEvent
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		events = append(events, evt)
		next = evt.Sequence
		if len(events) >= limit {
			break
		}
	}
	return events, next
}
