package channel

import (
	"context"
	"sync"
)

// Manager shares one Session per topic among any number of holders.
type Manager struct {
	ctx       context.Context
	transport Transport
	opts      []Option

	mu       sync.Mutex
	sessions map[string]*managed
}

type managed struct {
	session *Session
	refs    int
}

func NewManager(ctx context.Context, t Transport, opts ...Option) *Manager {
	return &Manager{
		ctx:       ctx,
		transport: t,
		opts:      opts,
		sessions:  make(map[string]*managed),
	}
}

// Acquire returns the topic's session, opening it on first use. The release
// func must be called exactly once; the last release closes the session.
func (m *Manager) Acquire(topic string) (*Session, func()) {
	m.mu.Lock()
	e, ok := m.sessions[topic]
	if !ok {
		e = &managed{session: Open(m.ctx, topic, m.transport, m.opts...)}
		m.sessions[topic] = e
	}
	e.refs++
	m.mu.Unlock()

	var once sync.Once
	return e.session, func() {
		once.Do(func() { m.release(topic, e) })
	}
}

func (m *Manager) release(topic string, e *managed) {
	m.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last && m.sessions[topic] == e {
		delete(m.sessions, topic)
	}
	m.mu.Unlock()
	if last {
		e.session.Close()
	}
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managed)
	m.mu.Unlock()
	for _, e := range sessions {
		e.session.Close()
	}
}
