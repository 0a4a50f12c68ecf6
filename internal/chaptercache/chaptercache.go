// Package chaptercache memoizes resolved chapters for the lifetime of a
// viewing session and coalesces concurrent misses into one fetch.
package chaptercache

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

type Fetcher interface {
	ResolveChapter(ctx context.Context, chapterID int64) (*models.Chapter, error)
}

type Cache struct {
	fetch   Fetcher
	metrics *metrics.Metrics

	mu      sync.RWMutex
	settled map[int64]*models.Chapter
	group   singleflight.Group
}

func New(f Fetcher, m *metrics.Metrics) *Cache {
	return &Cache{
		fetch:   f,
		metrics: m,
		settled: make(map[int64]*models.Chapter),
	}
}

func (c *Cache) lookup(id int64) (*models.Chapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.settled[id]
	return ch, ok
}

// Get returns the chapter, resolving it at most once per id. Entries are
// immutable once stored. Failures are not remembered, so the next Get
// retries. A caller that gives up does not cancel a fetch others wait on.
func (c *Cache) Get(ctx context.Context, chapterID int64) (*models.Chapter, error) {
	if ch, ok := c.lookup(chapterID); ok {
		c.metrics.IncCacheHit()
		return ch, nil
	}

	resCh := c.group.DoChan(strconv.FormatInt(chapterID, 10), func() (any, error) {
		if ch, ok := c.lookup(chapterID); ok {
			return ch, nil
		}
		c.metrics.IncCacheFetch()
		ch, err := c.fetch.ResolveChapter(context.WithoutCancel(ctx), chapterID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.settled[chapterID] = ch
		c.mu.Unlock()
		return ch, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Chapter), nil
	}
}

// Len counts settled chapters.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.settled)
}
