package host

import (
	"sync"
	"sync/atomic"
)

// Subscription receives committed sale events whose action is in its
// filter, or every event when the filter is empty.
type Subscription struct {
	id      uint64
	actions map[string]struct{}
	ch      chan Event
	feed    *Feed
	closed  atomic.Bool
}

// Chan delivers matching events. It is closed on Unsubscribe or when the
// feed shuts down.
func (s *Subscription) Chan() <-chan Event { return s.ch }

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.feed != nil {
		s.feed.unsubscribe(s)
	}
}

func (s *Subscription) wants(action string) bool {
	if len(s.actions) == 0 {
		return true
	}
	_, ok := s.actions[action]
	return ok
}

// Feed fans committed events out to subscribers. A subscriber that falls
// behind by more than the buffer misses events; the event log is the
// durable record. All methods are safe for concurrent use.
type Feed struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
}

// NewFeed creates a feed whose subscriptions buffer bufferSize events.
func NewFeed(bufferSize int) *Feed {
	return &Feed{subs: make(map[uint64]*Subscription), bufferSize: max(bufferSize, 0)}
}

// Subscribe registers for events with one of the given actions.
func (f *Feed) Subscribe(actions ...string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	filter := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		filter[a] = struct{}{}
	}
	if f.closed {
		sub := &Subscription{ch: make(chan Event), actions: filter}
		sub.closed.Store(true)
		close(sub.ch)
		return sub
	}
	f.nextID++
	sub := &Subscription{id: f.nextID, actions: filter, ch: make(chan Event, f.bufferSize), feed: f}
	f.subs[sub.id] = sub
	return sub
}

func (f *Feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !sub.closed.CompareAndSwap(false, true) {
		return
	}
	delete(f.subs, sub.id)
	close(sub.ch)
}

// Publish delivers ev without blocking.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, sub := range f.subs {
		if !sub.wants(ev.Action) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			f.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Close closes every subscription. Later Publish calls are no-ops.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
		delete(f.subs, id)
	}
}
