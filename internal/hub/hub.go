// Package hub is the topic-scoped publish/subscribe server that operators
// publish into and display surfaces join. Members are websocket clients or
// in-process channel sessions.
package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

const defaultMemberBuffer = 64

var ErrClosed = errors.New("hub: member closed")

// Broker carries envelopes between hub instances. Run blocks, handing every
// envelope published by any instance to deliver.
type Broker interface {
	Publish(ctx context.Context, env *models.Envelope) error
	Run(ctx context.Context, deliver func(*models.Envelope)) error
	Close() error
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Member]struct{}

	broker  Broker
	metrics *metrics.Metrics
	buffer  int
	log     zerolog.Logger

	startOnce sync.Once
	done      chan struct{}
}

type Option func(*Hub)

func WithBroker(b Broker) Option {
	return func(h *Hub) { h.broker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func WithMemberBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		topics: make(map[string]map[*Member]struct{}),
		buffer: defaultMemberBuffer,
		log:    logging.Component("hub"),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Start consumes the broker, if any, until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		if h.broker == nil {
			close(h.done)
			return
		}
		go func() {
			defer close(h.done)
			if err := h.broker.Run(ctx, h.deliver); err != nil && ctx.Err() == nil {
				h.log.Error().Err(err).Msg("broker stopped")
			}
		}()
	})
}

// Wait blocks until the broker loop started by Start has returned.
func (h *Hub) Wait() {
	<-h.done
}

// Member is one subscriber of one topic.
type Member struct {
	ID    string
	Topic string

	hub  *Hub
	send chan *models.Envelope
	once sync.Once
}

func (h *Hub) Join(topic string) *Member {
	m := &Member{
		ID:    uuid.NewString(),
		Topic: topic,
		hub:   h,
		send:  make(chan *models.Envelope, h.buffer),
	}
	h.mu.Lock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*Member]struct{})
		h.topics[topic] = members
	}
	members[m] = struct{}{}
	h.mu.Unlock()

	h.metrics.AddMembers(1)
	h.log.Debug().Str(logging.FieldTopic, topic).Str("member_id", m.ID).Msg("member joined")
	return m
}

// Leave removes the member from its topic and closes its queue.
func (m *Member) Leave() {
	m.once.Do(func() {
		h := m.hub
		h.mu.Lock()
		if members, ok := h.topics[m.Topic]; ok {
			delete(members, m)
			if len(members) == 0 {
				delete(h.topics, m.Topic)
			}
		}
		close(m.send)
		h.mu.Unlock()

		h.metrics.AddMembers(-1)
		h.log.Debug().Str(logging.FieldTopic, m.Topic).Str("member_id", m.ID).Msg("member left")
	})
}

func (m *Member) C() <-chan *models.Envelope {
	return m.send
}

// Recv returns the next envelope for the member.
func (m *Member) Recv(ctx context.Context) (*models.Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case env, ok := <-m.send:
		if !ok {
			return nil, ErrClosed
		}
		return env, nil
	}
}

func (m *Member) Close() error {
	m.Leave()
	return nil
}

// Publish sends env to every member of env.Topic on every hub instance.
func (h *Hub) Publish(ctx context.Context, env *models.Envelope) error {
	if env.Topic == "" {
		return errors.New("hub: envelope has no topic")
	}
	h.metrics.IncPublished(string(env.Name))
	if h.broker == nil {
		h.deliver(env)
		return nil
	}
	return h.broker.Publish(ctx, env)
}

func (h *Hub) deliver(env *models.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.topics[env.Topic] {
		select {
		case m.send <- env:
			h.metrics.IncDelivered()
		default:
			h.metrics.IncHubDropped()
			h.log.Warn().
				Str(logging.FieldTopic, env.Topic).
				Str(logging.FieldEvent, string(env.Name)).
				Str("member_id", m.ID).
				Msg("member buffer full, dropping envelope")
		}
	}
}

func (h *Hub) Members(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close disconnects every member. Joined members observe ErrClosed.
func (h *Hub) Close() error {
	h.mu.RLock()
	var all []*Member
	for _, members := range h.topics {
		for m := range members {
			all = append(all, m)
		}
	}
	h.mu.RUnlock()

	for _, m := range all {
		m.Leave()
	}
	if h.broker != nil {
		return h.broker.Close()
	}
	return nil
}
