// Package fanout distributes snapshots of a value to any number of
// subscribers. Slow subscribers only ever see the most recent snapshot.
package fanout

import "sync"

type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	closed      bool
	merge       func(unread, next T) T
}

func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[chan T]struct{})}
}

// NewMerging is New, except that a snapshot replacing an unread one is
// delivered as merge(unread, next).
func NewMerging[T any](merge func(unread, next T) T) *Broadcaster[T] {
	b := New[T]()
	b.merge = merge
	return b
}

func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	_, exists := b.subscribers[ch]
	delete(b.subscribers, ch)
	b.mu.Unlock()
	if exists {
		close(ch)
	}
}

// Publish hands v to every subscriber, replacing a snapshot it has not read yet.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- v:
			continue
		default:
		}
		next := v
		select {
		case unread := <-ch:
			if b.merge != nil {
				next = b.merge(unread, v)
			}
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel; later subscriptions start closed.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
