package server

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// rateLimiter counts hits per client inside a sliding window.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
		done:   make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep forgets clients with no hits left in the window.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for key, times := range rl.hits {
		if live := since(times, cutoff); len(live) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = live
		}
	}
}

// live trims key's hits to the window. Callers hold mu.
func (rl *rateLimiter) live(key string) []time.Time {
	times := since(rl.hits[key], rl.now().Add(-rl.window))
	if len(times) == 0 {
		delete(rl.hits, key)
		return nil
	}
	rl.hits[key] = times
	return times
}

// allow records a hit and reports whether key was under the limit.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	times := rl.live(key)
	if len(times) >= rl.limit {
		return false
	}
	rl.hits[key] = append(times, rl.now())
	return true
}

// blocked reports whether key is at the limit without recording a hit.
func (rl *rateLimiter) blocked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.live(key)) >= rl.limit
}

func (rl *rateLimiter) record(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.hits[key] = append(rl.live(key), rl.now())
}

// retryAfter is the Retry-After value in whole seconds until key's oldest
// hit leaves the window.
func (rl *rateLimiter) retryAfter(key string) string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	times := rl.live(key)
	wait := rl.window
	if len(times) > 0 {
		wait = times[0].Add(rl.window).Sub(rl.now())
	}
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// since returns the suffix of times after cutoff. times is in insertion
// order, so the first live entry ends the scan.
func since(times []time.Time, cutoff time.Time) []time.Time {
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return nil
}
