package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"worshiplive/internal/models"
)

var testBackoff = Backoff{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond}

type fakeStream struct {
	ch     chan *models.Envelope
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan *models.Envelope, 16), closed: make(chan struct{})}
}

func (f *fakeStream) Recv(ctx context.Context) (*models.Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.closed:
		return nil, errors.New("stream closed")
	case env := <-f.ch:
		return env, nil
	}
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// fakeTransport hands out streams queued by the test; with none queued,
// Connect fails.
type fakeTransport struct {
	mu       sync.Mutex
	streams  []*fakeStream
	attempts int
	topics   []string
	connects chan *fakeStream
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connects: make(chan *fakeStream, 16)}
}

func (f *fakeTransport) queue(s *fakeStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, s)
}

func (f *fakeTransport) Connect(ctx context.Context, topic string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	f.topics = append(f.topics, topic)
	if len(f.streams) == 0 {
		return nil, errors.New("connection refused")
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	f.connects <- s
	return s, nil
}

func (f *fakeTransport) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func mustEnvelope(t *testing.T, name models.EventName, topic string, payload any) *models.Envelope {
	t.Helper()
	env, err := models.NewEnvelope(name, topic, payload)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func recvEnvelope(t *testing.T, ch <-chan *models.Envelope) *models.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
	return nil
}

func recvConnected(t *testing.T, ch <-chan *models.Envelope) bool {
	t.Helper()
	env := recvEnvelope(t, ch)
	if env.Name != models.EventConnectionChanged {
		t.Fatalf("expected ConnectionChanged, got %s", env.Name)
	}
	var cc models.ConnectionChanged
	if err := env.Decode(&cc); err != nil {
		t.Fatal(err)
	}
	return cc.Connected
}
