package channel

import (
	"sync"

	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

const defaultSubscriptionBuffer = 64

// Relay fans envelopes out to local subscriptions filtered by event name.
type Relay struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewRelay(m *metrics.Metrics, log zerolog.Logger) *Relay {
	return &Relay{
		subs:    make(map[*Subscription]struct{}),
		metrics: m,
		log:     log,
	}
}

type Subscription struct {
	relay *Relay
	names map[models.EventName]struct{}
	ch    chan *models.Envelope
	once  sync.Once
}

// Subscribe registers a listener for the given event names; no names means
// every event.
func (r *Relay) Subscribe(buffer int, names ...models.EventName) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	s := &Subscription{
		relay: r,
		ch:    make(chan *models.Envelope, buffer),
	}
	if len(names) > 0 {
		s.names = make(map[models.EventName]struct{}, len(names))
		for _, n := range names {
			s.names[n] = struct{}{}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	r.subs[s] = struct{}{}
	return s
}

func (s *Subscription) C() <-chan *models.Envelope {
	return s.ch
}

func (s *Subscription) Wants(name models.EventName) bool {
	if s.names == nil {
		return true
	}
	_, ok := s.names[name]
	return ok
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.relay.mu.Lock()
		delete(s.relay.subs, s)
		close(s.ch)
		s.relay.mu.Unlock()
	})
}

// send delivers env to s alone, if s is still registered.
func (r *Relay) send(s *Subscription, env *models.Envelope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.subs[s]; !ok {
		return false
	}
	return s.offer(env)
}

// offer enqueues without blocking; the caller holds the relay lock.
func (s *Subscription) offer(env *models.Envelope) bool {
	select {
	case s.ch <- env:
		return true
	default:
		return false
	}
}

func (r *Relay) Dispatch(env *models.Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range r.subs {
		if !s.Wants(env.Name) {
			continue
		}
		if !s.offer(env) {
			r.metrics.IncRelayDropped(string(env.Name))
			r.log.Warn().
				Str(logging.FieldEvent, string(env.Name)).
				Str(logging.FieldTopic, env.Topic).
				Msg("subscriber buffer full, dropping envelope")
		}
	}
}

func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// closeAll ends every subscription; later subscriptions start closed.
func (r *Relay) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for s := range r.subs {
		s.once.Do(func() { close(s.ch) })
	}
	r.subs = make(map[*Subscription]struct{})
}
