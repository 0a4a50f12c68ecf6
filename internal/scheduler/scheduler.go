// Package scheduler runs the nightly janitor: expired operator sessions are
// purged and worship services left open past their lifetime are finished.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/store"
)

const DefaultStaleAfter = 12 * time.Hour

type Scheduler struct {
	store      *store.Store
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Scheduler)

// WithStaleAfter sets how long a worship may stay open before the janitor
// finishes it.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(st *store.Store, opts ...Option) *Scheduler {
	sch := &Scheduler{
		store:      st,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		log:        logging.Component("scheduler"),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Start sweeps once immediately, then daily at 3 AM local time.
func (sch *Scheduler) Start(ctx context.Context) {
	sch.startOnce.Do(func() {
		ctx, sch.cancel = context.WithCancel(ctx)
		go sch.run(ctx)
	})
}

func (sch *Scheduler) Stop() {
	if sch.cancel != nil {
		sch.cancel()
		<-sch.done
	}
}

func (sch *Scheduler) run(ctx context.Context) {
	defer close(sch.done)

	if _, err := sch.Sweep(ctx); err != nil {
		sch.log.Error().Err(err).Msg("initial sweep failed")
	}

	timer := time.NewTimer(durationUntil3AM(sch.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := sch.Sweep(ctx); err != nil {
				sch.log.Error().Err(err).Msg("nightly sweep failed")
			}
			// Recalculate to handle DST transitions
			timer.Reset(durationUntil3AM(sch.now()))
		}
	}
}

type SweepResult struct {
	SessionsDeleted  int64
	WorshipsFinished int64
}

func (sch *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	n, err := sch.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return res, err
	}
	res.SessionsDeleted = n

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	n, err = sch.store.FinishStaleWorships(ctx, sch.now().Add(-sch.staleAfter))
	if err != nil {
		return res, err
	}
	res.WorshipsFinished = n

	sch.log.Info().
		Int64("sessions_deleted", res.SessionsDeleted).
		Int64("worships_finished", res.WorshipsFinished).
		Msg("sweep completed")
	return res, nil
}

// durationUntil3AM uses local time so the sweep runs at 3 AM in the server's timezone.
func durationUntil3AM(now time.Time) time.Duration {
	next3AM := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
	if !now.Before(next3AM) {
		next3AM = next3AM.Add(24 * time.Hour)
	}
	return next3AM.Sub(now)
}
