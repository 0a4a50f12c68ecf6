// Package surfaces hosts the display surfaces of each live worship: the
// audience display controller and the projection preloader, both fed by one
// shared channel session per topic.
package surfaces

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"worshiplive/internal/channel"
	"worshiplive/internal/chaptercache"
	"worshiplive/internal/content"
	"worshiplive/internal/display"
	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/preloader"
)

var ErrClosed = errors.New("surfaces: manager closed")

// DefaultLinger keeps a topic's surfaces alive briefly after the last viewer
// leaves so a reconnecting browser finds its state.
const DefaultLinger = 30 * time.Second

const subscriptionBuffer = 128

// Surface is the live state of one topic.
type Surface struct {
	topic     string
	session   *channel.Session
	display   *display.Controller
	projector *preloader.Projector
	cache     *chaptercache.Cache

	release  func()
	cancel   context.CancelFunc
	displayC *channel.Subscription
	projectC *channel.Subscription
	wg       sync.WaitGroup
}

func (s *Surface) Topic() string                   { return s.topic }
func (s *Surface) Display() *display.Controller    { return s.display }
func (s *Surface) Projector() *preloader.Projector { return s.projector }
func (s *Surface) Connected() bool                 { return s.session.Connected() }

// Status describes a topic's surfaces for operators.
type Status struct {
	Topic             string `json:"topic"`
	Connected         bool   `json:"connected"`
	CachedChapters    int    `json:"cached_chapters"`
	RelaySubscribers  int    `json:"relay_subscribers"`
	DisplayViewers    int    `json:"display_viewers"`
	ProjectionViewers int    `json:"projection_viewers"`
}

func (s *Surface) Status() Status {
	return Status{
		Topic:             s.topic,
		Connected:         s.session.Connected(),
		CachedChapters:    s.cache.Len(),
		RelaySubscribers:  s.session.Subscribers(),
		DisplayViewers:    s.display.Viewers(),
		ProjectionViewers: s.projector.Viewers(),
	}
}

func (s *Surface) stop() {
	s.cancel()
	s.displayC.Close()
	s.projectC.Close()
	s.wg.Wait()
	s.release()
}

type entry struct {
	surface *Surface
	refs    int
	timer   *time.Timer
}

type Manager struct {
	ctx      context.Context
	channels *channel.Manager
	resolver content.Resolver
	fetcher  preloader.Fetcher
	metrics  *metrics.Metrics
	notices  int
	linger   time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

func WithNoticeHistory(n int) Option {
	return func(mg *Manager) { mg.notices = n }
}

// WithLinger sets how long idle surfaces survive; zero stops them on the
// last release.
func WithLinger(d time.Duration) Option {
	return func(mg *Manager) { mg.linger = d }
}

func New(ctx context.Context, channels *channel.Manager, resolver content.Resolver, fetcher preloader.Fetcher, opts ...Option) *Manager {
	m := &Manager{
		ctx:      ctx,
		channels: channels,
		resolver: resolver,
		fetcher:  fetcher,
		linger:   DefaultLinger,
		log:      logging.Component("surfaces"),
		entries:  make(map[string]*entry),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire returns the topic's surfaces, starting them on first use. The
// release func must be called once when the caller is done.
func (m *Manager) Acquire(topic string) (*Surface, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrClosed
	}
	e, ok := m.entries[topic]
	if !ok {
		e = &entry{surface: m.start(topic)}
		m.entries[topic] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.refs++
	m.mu.Unlock()

	var once sync.Once
	return e.surface, func() {
		once.Do(func() { m.release(topic, e) })
	}, nil
}

func (m *Manager) start(topic string) *Surface {
	ctx, cancel := context.WithCancel(m.ctx)
	session, release := m.channels.Acquire(topic)
	cache := chaptercache.New(m.resolver, m.metrics)

	s := &Surface{
		topic:   topic,
		session: session,
		cache:   cache,
		display: display.NewController(topic, cache,
			display.WithMetrics(m.metrics), display.WithNoticeHistory(m.notices)),
		projector: preloader.NewProjector(topic, m.resolver, m.fetcher,
			preloader.WithMetrics(m.metrics)),
		release:  release,
		cancel:   cancel,
		displayC: session.Subscribe(subscriptionBuffer, display.Events...),
		projectC: session.Subscribe(subscriptionBuffer, preloader.Events...),
	}
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.display.Run(ctx, s.displayC.C())
	}()
	go func() {
		defer s.wg.Done()
		s.projector.Run(ctx, s.projectC.C())
	}()
	m.log.Info().Str(logging.FieldTopic, topic).Msg("surfaces started")
	return s
}

func (m *Manager) release(topic string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs > 0 || m.entries[topic] != e {
		m.mu.Unlock()
		return
	}
	if m.linger > 0 {
		e.timer = time.AfterFunc(m.linger, func() { m.expire(topic, e) })
		m.mu.Unlock()
		return
	}
	delete(m.entries, topic)
	m.mu.Unlock()
	m.stop(e)
}

func (m *Manager) expire(topic string, e *entry) {
	m.mu.Lock()
	if e.refs > 0 || m.entries[topic] != e {
		m.mu.Unlock()
		return
	}
	delete(m.entries, topic)
	m.mu.Unlock()
	m.stop(e)
}

func (m *Manager) stop(e *entry) {
	e.surface.stop()
	m.log.Info().Str(logging.FieldTopic, e.surface.topic).Msg("surfaces stopped")
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops every surface; later Acquire calls fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		m.stop(e)
	}
}
