package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worshiplive/internal/models"
)

func TestBackoffNext(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(time.Second))
	assert.Equal(t, 16*time.Second, b.Next(8*time.Second))
	assert.Equal(t, 30*time.Second, b.Next(16*time.Second))
	assert.Equal(t, 30*time.Second, b.Next(30*time.Second))
}

func TestSessionReportsConnectivity(t *testing.T) {
	tr := newFakeTransport()
	s := Open(context.Background(), "worship-42", tr, WithBackoff(testBackoff))
	defer s.Close()

	status := s.Subscribe(8, models.EventConnectionChanged)
	assert.False(t, recvConnected(t, status.C()), "initial status is disconnected")

	stream := newFakeStream()
	tr.queue(stream)
	assert.True(t, recvConnected(t, status.C()))
	assert.True(t, s.Connected())

	// A late subscriber still learns the current status.
	late := s.Subscribe(1, models.EventConnectionChanged)
	assert.True(t, recvConnected(t, late.C()))

	stream.Close()
	assert.False(t, recvConnected(t, status.C()))
	assert.False(t, s.Connected())
}

func TestSessionRelaysEnvelopes(t *testing.T) {
	tr := newFakeTransport()
	stream := newFakeStream()
	tr.queue(stream)

	s := Open(context.Background(), "worship-42", tr, WithBackoff(testBackoff))
	defer s.Close()
	<-tr.connects

	slides := s.Subscribe(8, models.EventSlidePointerUpdated)
	stream.ch <- mustEnvelope(t, models.EventSlidePointerUpdated, "worship-7", models.SlidePointer{PresentationID: 1})
	stream.ch <- mustEnvelope(t, models.EventHymnPresented, "worship-42", models.HymnPresented{})
	stream.ch <- mustEnvelope(t, models.EventSlidePointerUpdated, "worship-42", models.SlidePointer{PresentationID: 3, SlideIndex: 1})

	env := recvEnvelope(t, slides.C())
	var p models.SlidePointer
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, int64(3), p.PresentationID)
	assert.Equal(t, 1, p.SlideIndex)
	assert.Len(t, slides.C(), 0)
}

func TestSessionReconnectsWithBackoff(t *testing.T) {
	tr := newFakeTransport()
	s := Open(context.Background(), "worship-42", tr, WithBackoff(testBackoff))
	defer s.Close()

	assert.Eventually(t, func() bool { return tr.Attempts() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.Connected())

	tr.queue(newFakeStream())
	assert.Eventually(t, s.Connected, 2*time.Second, 5*time.Millisecond)
}

func TestSessionCloseEndsSubscriptions(t *testing.T) {
	tr := newFakeTransport()
	tr.queue(newFakeStream())
	s := Open(context.Background(), "worship-42", tr, WithBackoff(testBackoff))
	<-tr.connects

	sub := s.Subscribe(8, models.EventHymnPresented)
	s.Close()

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("session not done")
	}
}

func TestSessionStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := Open(ctx, "worship-42", newFakeTransport(), WithBackoff(testBackoff))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}
