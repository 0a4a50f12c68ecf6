package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

// Session keeps one connection to a topic alive and relays everything it
// receives. Transport errors never surface beyond Connected.
type Session struct {
	topic     string
	transport Transport
	backoff   Backoff
	metrics   *metrics.Metrics
	log       zerolog.Logger

	relay     *Relay
	connected atomic.Bool
	statusMu  sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Session)

func WithBackoff(b Backoff) Option {
	return func(s *Session) { s.backoff = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Open starts the connect loop for topic. The session lives until ctx is
// done or Close is called.
func Open(ctx context.Context, topic string, t Transport, opts ...Option) *Session {
	s := &Session{
		topic:     topic,
		transport: t,
		backoff:   DefaultBackoff,
		log:       logging.Component("channel").With().Str(logging.FieldTopic, topic).Logger(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.relay = NewRelay(s.metrics, s.log)

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return s
}

func (s *Session) Topic() string {
	return s.topic
}

func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Subscribers counts the local listeners currently attached.
func (s *Session) Subscribers() int {
	return s.relay.Len()
}

// Subscribe registers a local listener. A listener interested in
// ConnectionChanged first receives the current connectivity.
func (s *Session) Subscribe(buffer int, names ...models.EventName) *Subscription {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	sub := s.relay.Subscribe(buffer, names...)
	if sub.Wants(models.EventConnectionChanged) {
		s.relay.send(sub, s.connectionEnvelope(s.connected.Load()))
	}
	return sub
}

// Close tears the connection down and ends every subscription.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.relay.closeAll()

	delay := s.backoff.Initial
	for {
		stream, err := s.transport.Connect(ctx, s.topic)
		if err == nil {
			s.setConnected(true)
			delay = s.backoff.Initial
			err = s.pump(ctx, stream)
			stream.Close()
			s.setConnected(false)
		}
		if ctx.Err() != nil {
			return
		}
		s.metrics.IncReconnects()
		s.log.Warn().
			Err(&models.ConnectionError{Topic: s.topic, Err: err}).
			Dur("retry_in", delay).
			Msg("channel disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			delay = s.backoff.Next(delay)
		}
	}
}

func (s *Session) pump(ctx context.Context, stream Stream) error {
	for {
		env, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		if env.Topic != "" && env.Topic != s.topic {
			s.log.Warn().Str("envelope_topic", env.Topic).Msg("ignoring envelope for another topic")
			continue
		}
		if env.Name == models.EventConnectionChanged {
			s.log.Warn().Msg("ignoring remote ConnectionChanged")
			continue
		}
		s.relay.Dispatch(env)
	}
}

func (s *Session) setConnected(v bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if s.connected.Swap(v) == v {
		return
	}
	if v {
		s.log.Info().Msg("channel connected")
	}
	s.relay.Dispatch(s.connectionEnvelope(v))
}

func (s *Session) connectionEnvelope(connected bool) *models.Envelope {
	env, _ := models.NewEnvelope(models.EventConnectionChanged, s.topic, models.ConnectionChanged{Connected: connected})
	return env
}
