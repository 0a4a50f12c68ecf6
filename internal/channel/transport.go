// Package channel owns the client side of the live event channel: one hub
// connection per worship topic, re-dispatched to any number of local
// listeners through an in-process relay.
package channel

import (
	"context"
	"time"

	"worshiplive/internal/models"
)

// Stream is one live connection to a topic.
type Stream interface {
	Recv(ctx context.Context) (*models.Envelope, error)
	Close() error
}

// Transport opens streams. Implementations do not retry; the session does.
type Transport interface {
	Connect(ctx context.Context, topic string) (Stream, error)
}

// Backoff is the reconnect policy: exponential from Initial, capped at Max,
// retried forever, reset after every successful connect.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second}

func (b Backoff) Next(cur time.Duration) time.Duration {
	if cur <= 0 {
		return b.Initial
	}
	return min(cur*2, b.Max)
}
