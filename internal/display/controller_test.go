package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worshiplive/internal/chaptercache"
	"worshiplive/internal/models"
)

// countingResolver serves chapter() for any id, blocking ids that have a
// gate until the gate is closed.
type countingResolver struct {
	mu    sync.Mutex
	calls map[int64]int
	gates map[int64]chan struct{}
	fail  map[int64]error
}

func newCountingResolver() *countingResolver {
	return &countingResolver{
		calls: make(map[int64]int),
		gates: make(map[int64]chan struct{}),
		fail:  make(map[int64]error),
	}
}

func (r *countingResolver) gate(id int64) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := make(chan struct{})
	r.gates[id] = g
	return g
}

func (r *countingResolver) ResolveChapter(_ context.Context, id int64) (*models.Chapter, error) {
	r.mu.Lock()
	r.calls[id]++
	g := r.gates[id]
	err := r.fail[id]
	r.mu.Unlock()
	if g != nil {
		<-g
	}
	if err != nil {
		return nil, err
	}
	return chapter(id), nil
}

func (r *countingResolver) Calls(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

type harness struct {
	ctrl     *Controller
	resolver *countingResolver
	events   chan *models.Envelope
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	r := newCountingResolver()
	h := &harness{
		ctrl:     NewController("worship-42", chaptercache.New(r, nil), WithNoticeHistory(3)),
		resolver: r,
		events:   make(chan *models.Envelope, 16),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ctrl.Run(ctx, h.events)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) send(t *testing.T, name models.EventName, payload any) {
	t.Helper()
	env, err := models.NewEnvelope(name, "worship-42", payload)
	require.NoError(t, err)
	h.events <- env
}

func (h *harness) waitFor(t *testing.T, cond func(State) bool) State {
	t.Helper()
	var s State
	require.Eventually(t, func() bool {
		s = h.ctrl.Snapshot().State
		return cond(s)
	}, 2*time.Second, 2*time.Millisecond)
	return s
}

func highlighted(chapterID, verseID int64) func(State) bool {
	return func(s State) bool {
		return s.Mode == ModeBible && s.Bible.ChapterID == chapterID && s.Bible.HighlightedVerseID == verseID
	}
}

func TestTopic42Scenario(t *testing.T) {
	h := newHarness(t)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	first := h.waitFor(t, highlighted(100, 1))
	assert.Equal(t, "Genesis", first.Bible.BookName)
	assert.Equal(t, 1, h.resolver.Calls(100))

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 2))
	second := h.waitFor(t, highlighted(100, 2))
	assert.Same(t, &first.Bible.Verses[0], &second.Bible.Verses[0], "patch reuses the verse list")
	assert.Equal(t, 1, h.resolver.Calls(100))

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 101, 1))
	third := h.waitFor(t, highlighted(101, 1))
	assert.Equal(t, 1, h.resolver.Calls(101))
	assert.Equal(t, 1, h.resolver.Calls(100))
	assert.Equal(t, "verse-1", third.HighlightedPart)
}

func TestVerseOnlySequenceFetchesOnce(t *testing.T) {
	h := newHarness(t)
	for v := int64(1); v <= 3; v++ {
		h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, v))
	}
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 3))
	h.waitFor(t, highlighted(100, 3))
	assert.Equal(t, 1, h.resolver.Calls(100))
}

func TestConcurrentReloadsOfSameChapterFetchOnce(t *testing.T) {
	h := newHarness(t)
	gate := h.resolver.gate(300)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 300, 1))
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 300, 2))
	require.Eventually(t, func() bool { return h.resolver.Calls(300) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)

	s := h.waitFor(t, highlighted(300, 2))
	assert.Equal(t, "verse-2", s.HighlightedPart)
	assert.Equal(t, 1, h.resolver.Calls(300))
}

func TestLaterHymnSupersedesPendingReload(t *testing.T) {
	h := newHarness(t)
	gate := h.resolver.gate(200)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 200, 1))
	require.Eventually(t, func() bool { return h.resolver.Calls(200) == 1 }, time.Second, time.Millisecond)
	h.send(t, models.EventHymnPresented, models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 1})
	h.waitFor(t, func(s State) bool { return s.Mode == ModeHymn })

	close(gate)
	// An offering event after the stale result proves the loop moved past it.
	h.send(t, models.EventOfferingPresented, models.OfferingPresented{ActivityID: 9})
	s := h.waitFor(t, func(s State) bool { return s.OfferingActive })
	assert.Equal(t, ModeHymn, s.Mode)
	assert.Nil(t, s.Bible)
}

func TestReturnToShownChapterDropsPendingReload(t *testing.T) {
	h := newHarness(t)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	h.waitFor(t, highlighted(100, 1))

	gate := h.resolver.gate(101)
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 101, 1))
	require.Eventually(t, func() bool { return h.resolver.Calls(101) == 1 }, time.Second, time.Millisecond)
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	h.send(t, models.EventOfferingPresented, models.OfferingPresented{ActivityID: 9})
	h.waitFor(t, func(s State) bool { return s.OfferingActive })

	close(gate)
	assert.Never(t, func() bool {
		return h.ctrl.Snapshot().State.Bible.ChapterID == 101
	}, 150*time.Millisecond, 5*time.Millisecond, "late chapter 101 must not replace the display")

	s := h.ctrl.Snapshot().State
	assert.True(t, highlighted(100, 1)(s))
	assert.Equal(t, 1, h.resolver.Calls(100))
}

func TestResolverFailureKeepsChapter(t *testing.T) {
	h := newHarness(t)
	h.resolver.fail[999] = models.NewContentError("chapter", 999, models.ErrNotFound)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	h.waitFor(t, highlighted(100, 1))

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 999, 1))
	s := h.waitFor(t, func(s State) bool { return s.Error != "" })
	assert.Equal(t, ModeBible, s.Mode)
	assert.Equal(t, int64(100), s.Bible.ChapterID)
}

func TestInvalidHighlightSurfacesError(t *testing.T) {
	h := newHarness(t)
	h.send(t, models.EventBibleReadingHighlighted, models.BibleReadingHighlighted{ActivityID: 1, ChapterID: 100})
	s := h.waitFor(t, func(s State) bool { return s.Error != "" })
	assert.Equal(t, ModeError, s.Mode)
	assert.Contains(t, s.Error, "version_id")
	assert.Equal(t, 0, h.resolver.Calls(100))
}

func TestUnknownVerseIsRejected(t *testing.T) {
	h := newHarness(t)
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	h.waitFor(t, highlighted(100, 1))

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 42))
	s := h.waitFor(t, func(s State) bool { return s.Error != "" })
	assert.Equal(t, int64(1), s.Bible.HighlightedVerseID)
}

func TestHymnWithoutVersesIsContentError(t *testing.T) {
	h := newHarness(t)
	h.send(t, models.EventHymnPresented, models.HymnPresented{Hymn: &models.Hymn{Title: "Empty"}})
	s := h.waitFor(t, func(s State) bool { return s.Error != "" })
	assert.Equal(t, ModeError, s.Mode)
	assert.Contains(t, s.Error, "hymn")
}

func TestAudienceExtras(t *testing.T) {
	h := newHarness(t)
	for _, msg := range []string{"one", "two", "three", "four"} {
		h.send(t, models.EventAdminNoticeReceived, models.AdminNoticeReceived{Message: msg})
	}
	h.send(t, models.EventAdminNoticeReceived, models.AdminNoticeReceived{Message: "  "})
	h.send(t, models.EventPrayerRequestReceived, models.PrayerRequestReceived{})
	h.send(t, models.EventConnectionChanged, models.ConnectionChanged{Connected: true})

	s := h.waitFor(t, func(s State) bool { return s.Connected })
	require.Len(t, s.Notices, 3)
	assert.Equal(t, "four", s.Notices[0].Message)
	assert.Equal(t, uint64(1), s.PrayerRevision)
	assert.Equal(t, ModeWaiting, s.Mode)
}

func TestSubscribersReceiveFrames(t *testing.T) {
	h := newHarness(t)
	ch := h.ctrl.Subscribe()
	defer h.ctrl.Unsubscribe(ch)

	h.send(t, models.EventOfferingPresented, models.OfferingPresented{ActivityID: 1})
	select {
	case f := <-ch:
		assert.True(t, f.State.OfferingActive)
		assert.Equal(t, uint64(1), f.Revision)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
}

func TestUnreadTransitionEffectsSurvive(t *testing.T) {
	h := newHarness(t)
	ch := h.ctrl.Subscribe()
	defer h.ctrl.Unsubscribe(ch)

	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 1))
	h.waitFor(t, highlighted(100, 1))
	h.send(t, models.EventBibleReadingHighlighted, highlight(1, 100, 2))
	patched := h.waitFor(t, highlighted(100, 2))
	h.send(t, models.EventOfferingPresented, models.OfferingPresented{ActivityID: 3})
	h.waitFor(t, func(s State) bool { return s.OfferingActive })
	time.Sleep(20 * time.Millisecond)

	select {
	case f := <-ch:
		assert.True(t, f.State.OfferingActive)
		assert.Equal(t, Effects{ClearOverlay: true, ScrollTo: patched.HighlightedPart}, f.Effects)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
}
