package display

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"worshiplive/internal/fanout"
	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

// Events lists the channel events a Controller consumes.
var Events = []models.EventName{
	models.EventBibleReadingHighlighted,
	models.EventHymnPresented,
	models.EventOfferingPresented,
	models.EventOfferingFinished,
	models.EventPrayerRequestReceived,
	models.EventAdminNoticeReceived,
	models.EventConnectionChanged,
}

// Chapters is the chapter source used on reload, normally a chaptercache.Cache.
type Chapters interface {
	Get(ctx context.Context, chapterID int64) (*models.Chapter, error)
}

// Frame is one published state together with the effects of the transition
// that produced it.
type Frame struct {
	Revision uint64  `json:"revision"`
	State    State   `json:"state"`
	Effects  Effects `json:"effects"`
}

type reloadResult struct {
	seq     uint64
	event   models.BibleReadingHighlighted
	chapter *models.Chapter
	err     error
}

// Controller owns the display state of one topic. Only the Run goroutine
// mutates it; readers get copies.
type Controller struct {
	topic       string
	chapters    Chapters
	metrics     *metrics.Metrics
	log         zerolog.Logger
	noticeLimit int

	state    State
	revision uint64
	seq      uint64
	pending  bool
	reloads  chan reloadResult

	mu    sync.RWMutex
	frame Frame

	frames *fanout.Broadcaster[Frame]
}

type Option func(*Controller)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithNoticeHistory(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.noticeLimit = n
		}
	}
}

func NewController(topic string, chapters Chapters, opts ...Option) *Controller {
	c := &Controller{
		topic:       topic,
		chapters:    chapters,
		log:         logging.Component("display").With().Str(logging.FieldTopic, topic).Logger(),
		noticeLimit: DefaultNoticeHistory,
		state:       Initial(),
		reloads:     make(chan reloadResult, 8),
		frames:      fanout.NewMerging(mergeFrames),
	}
	for _, o := range opts {
		o(c)
	}
	c.frame = Frame{State: c.state}
	return c
}

func (c *Controller) Topic() string {
	return c.topic
}

// Snapshot returns the latest published frame.
func (c *Controller) Snapshot() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Subscribe returns a channel of frames; a slow reader only sees the latest.
func (c *Controller) Subscribe() chan Frame {
	return c.frames.Subscribe()
}

func (c *Controller) Unsubscribe(ch chan Frame) {
	c.frames.Unsubscribe(ch)
}

// Viewers counts the open frame subscriptions.
func (c *Controller) Viewers() int {
	return c.frames.Len()
}

// Run consumes envelopes until ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan *models.Envelope) {
	defer c.frames.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, env)
		case r := <-c.reloads:
			c.finishReload(r)
		}
	}
}

func (c *Controller) handle(ctx context.Context, env *models.Envelope) {
	switch env.Name {
	case models.EventBibleReadingHighlighted:
		c.handleBible(ctx, env)
	case models.EventHymnPresented:
		c.supersede()
		var p models.HymnPresented
		if err := env.Decode(&p); err != nil {
			c.failed(env.Name, err)
			return
		}
		if p.Hymn == nil || len(p.Hymn.Verses) == 0 {
			var id int64
			if p.Hymn != nil {
				id = p.Hymn.ID
			}
			c.failed(env.Name, models.NewContentError("hymn", id, errHymnWithoutVerses))
			return
		}
		c.apply(HymnShown{Presentation: p})
	case models.EventOfferingPresented:
		c.apply(OfferingChanged{Active: true})
	case models.EventOfferingFinished:
		c.apply(OfferingChanged{Active: false})
	case models.EventPrayerRequestReceived:
		c.apply(PrayerRequestsChanged{})
	case models.EventAdminNoticeReceived:
		var n models.AdminNoticeReceived
		if err := env.Decode(&n); err != nil {
			c.log.Warn().Err(err).Msg("dropping admin notice")
			return
		}
		if err := n.Validate(); err != nil {
			c.log.Warn().Err(err).Msg("dropping admin notice")
			return
		}
		c.apply(NoticeReceived{
			Notice: Notice{Message: n.Message, ImageBase64: n.ImageBase64, ReceivedAt: env.SentAt},
			Limit:  c.noticeLimit,
		})
	case models.EventConnectionChanged:
		var cc models.ConnectionChanged
		if err := env.Decode(&cc); err != nil {
			c.log.Warn().Err(err).Msg("dropping connection status")
			return
		}
		c.apply(ConnectionChanged{Connected: cc.Connected})
	default:
		c.log.Debug().Str(logging.FieldEvent, string(env.Name)).Msg("ignoring event")
	}
}

func (c *Controller) handleBible(ctx context.Context, env *models.Envelope) {
	var ev models.BibleReadingHighlighted
	if err := env.Decode(&ev); err != nil {
		c.supersede()
		c.failed(env.Name, err)
		return
	}
	if err := ev.Validate(); err != nil {
		c.supersede()
		c.failed(env.Name, err)
		return
	}

	decision := Classify(c.state, ev)
	c.metrics.IncDecision(string(decision))
	log := c.log.With().
		Int64("chapter_id", ev.ChapterID).
		Int64("verse_id", ev.VerseID).
		Str("decision", string(decision)).
		Logger()

	switch decision {
	case Duplicate:
		if c.pending {
			// Back to what is on screen: the reload in flight is now stale.
			c.supersede()
			log.Debug().Msg("highlight returns to current chapter, dropping pending reload")
			return
		}
		log.Debug().Msg("duplicate highlight")
	case Patch:
		c.supersede()
		if !c.state.Bible.HasVerse(ev.VerseID) {
			c.failed(env.Name, &models.ValidationError{
				Event: env.Name, Field: "verse_id",
				Reason: fmt.Sprintf("%d is not in chapter %d", ev.VerseID, ev.ChapterID),
			})
			return
		}
		log.Debug().Msg("patching highlight")
		c.apply(BibleVersePatched{Event: ev})
	case Reload:
		seq := c.supersede()
		c.pending = true
		log.Debug().Uint64("seq", seq).Msg("reloading chapter")
		go func() {
			ch, err := c.chapters.Get(ctx, ev.ChapterID)
			select {
			case c.reloads <- reloadResult{seq: seq, event: ev, chapter: ch, err: err}:
			case <-ctx.Done():
			}
		}()
	}
}

// supersede invalidates any reload in flight and returns the new sequence.
func (c *Controller) supersede() uint64 {
	c.pending = false
	c.seq++
	return c.seq
}

func (c *Controller) finishReload(r reloadResult) {
	if r.seq != c.seq {
		c.log.Debug().Int64("chapter_id", r.event.ChapterID).Uint64("seq", r.seq).Msg("discarding superseded reload")
		return
	}
	c.pending = false
	if r.err != nil {
		c.failed(models.EventBibleReadingHighlighted, r.err)
		return
	}
	payload := BiblePayload{Verses: r.chapter.Verses}
	if !payload.HasVerse(r.event.VerseID) {
		c.failed(models.EventBibleReadingHighlighted, &models.ValidationError{
			Event: models.EventBibleReadingHighlighted, Field: "verse_id",
			Reason: fmt.Sprintf("%d is not in chapter %d", r.event.VerseID, r.event.ChapterID),
		})
		return
	}
	c.apply(BibleChapterLoaded{Event: r.event, Chapter: r.chapter})
}

func (c *Controller) failed(event models.EventName, err error) {
	c.log.Warn().Err(err).Str(logging.FieldEvent, string(event)).Msg("display update failed")
	c.apply(ContentFailed{Err: err})
}

// mergeFrames keeps the effects of a frame a subscriber never read, so a
// scroll target survives a following offering or notice frame.
func mergeFrames(unread, next Frame) Frame {
	next.Effects = unread.Effects.Then(next.Effects)
	return next
}

func (c *Controller) apply(a Action) {
	next, fx := Reduce(c.state, a)
	c.state = next
	c.revision++
	f := Frame{Revision: c.revision, State: next, Effects: fx}

	c.mu.Lock()
	c.frame = f
	c.mu.Unlock()
	c.frames.Publish(f)
}
