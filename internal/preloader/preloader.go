// Package preloader drives the projection surface: it materializes the
// presentation a slide pointer refers to and loads every slide's media
// before the pointer becomes a renderable frame.
package preloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"worshiplive/internal/fanout"
	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

type Stage string

const (
	StageConnecting  Stage = "connecting"
	StageWaiting     Stage = "waiting"
	StageLoadingData Stage = "loading-data"
	StagePreloading  Stage = "preloading"
	StageReady       Stage = "ready"
	StageError       Stage = "error"
)

var (
	ErrNotReady         = errors.New("projection is not ready")
	ErrOutOfRange       = errors.New("no slide in that direction")
	ErrAssetUnavailable = errors.New("slide media failed to load")
)

// Events lists the channel events a Projector consumes.
var Events = []models.EventName{
	models.EventSlidePointerUpdated,
	models.EventConnectionChanged,
}

type Presentations interface {
	ResolvePresentation(ctx context.Context, presentationID int64) (*models.Presentation, error)
}

type Status struct {
	Stage        Stage                `json:"stage"`
	Percent      int                  `json:"percent"`
	Connected    bool                 `json:"connected"`
	Presentation *models.Presentation `json:"presentation,omitempty"`
	SlideIndex   int                  `json:"slide_index"`
	// Slide is set only when Stage is ready.
	Slide *models.Slide `json:"slide,omitempty"`
	Error string        `json:"error,omitempty"`
}

type loadMsg interface{ load() }

type presentationLoaded struct {
	seq          uint64
	presentation *models.Presentation
	err          error
}

type assetLoaded struct {
	seq   uint64
	url   string
	asset Asset
	err   error
}

type preloadJoined struct {
	seq uint64
}

func (presentationLoaded) load() {}
func (assetLoaded) load()        {}
func (preloadJoined) load()      {}

type navigate struct {
	delta int
	reply chan error
}

// Projector owns the projection state of one topic. Mutation happens only in
// the Run goroutine.
type Projector struct {
	topic         string
	presentations Presentations
	fetcher       Fetcher
	metrics       *metrics.Metrics
	log           zerolog.Logger

	status     Status
	hasPointer bool
	seq        uint64
	loadingID  int64
	loadCtx    context.Context
	cancelLoad context.CancelFunc
	total      int
	done       int
	loads      chan loadMsg
	nav        chan navigate
	stopped    chan struct{}

	mu       sync.RWMutex
	snapshot Status
	assets   map[string]Asset

	updates *fanout.Broadcaster[Status]
}

type Option func(*Projector)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projector) { p.metrics = m }
}

func NewProjector(topic string, presentations Presentations, fetcher Fetcher, opts ...Option) *Projector {
	p := &Projector{
		topic:         topic,
		presentations: presentations,
		fetcher:       fetcher,
		log:           logging.Component("preloader").With().Str(logging.FieldTopic, topic).Logger(),
		status:        Status{Stage: StageConnecting},
		loads:         make(chan loadMsg, 64),
		nav:           make(chan navigate),
		stopped:       make(chan struct{}),
		assets:        make(map[string]Asset),
		updates:       fanout.New[Status](),
	}
	for _, o := range opts {
		o(p)
	}
	p.snapshot = p.status
	return p
}

func (p *Projector) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func (p *Projector) Subscribe() chan Status {
	return p.updates.Subscribe()
}

func (p *Projector) Unsubscribe(ch chan Status) {
	p.updates.Unsubscribe(ch)
}

// Viewers counts the open status subscriptions.
func (p *Projector) Viewers() int {
	return p.updates.Len()
}

// Frame returns the current slide and its media once the projection is ready.
func (p *Projector) Frame() (models.Slide, Asset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot.Stage != StageReady || p.snapshot.Slide == nil {
		return models.Slide{}, Asset{}, ErrNotReady
	}
	slide := *p.snapshot.Slide
	a, ok := p.assets[slide.MediaURL]
	if !ok {
		return slide, Asset{}, ErrAssetUnavailable
	}
	return slide, a, nil
}

func (p *Projector) Next(ctx context.Context) error {
	return p.navigate(ctx, 1)
}

func (p *Projector) Prev(ctx context.Context) error {
	return p.navigate(ctx, -1)
}

func (p *Projector) navigate(ctx context.Context, delta int) error {
	reply := make(chan error, 1)
	select {
	case p.nav <- navigate{delta: delta, reply: reply}:
	case <-p.stopped:
		return ErrNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes envelopes until ctx is done or events is closed.
func (p *Projector) Run(ctx context.Context, events <-chan *models.Envelope) {
	defer close(p.stopped)
	defer p.updates.Close()
	defer func() {
		if p.cancelLoad != nil {
			p.cancelLoad()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			p.handle(ctx, env)
		case msg := <-p.loads:
			p.handleLoad(msg)
		case n := <-p.nav:
			n.reply <- p.move(n.delta)
		}
	}
}

func (p *Projector) handle(ctx context.Context, env *models.Envelope) {
	switch env.Name {
	case models.EventConnectionChanged:
		var cc models.ConnectionChanged
		if err := env.Decode(&cc); err != nil {
			p.log.Warn().Err(err).Msg("dropping connection status")
			return
		}
		p.status.Connected = cc.Connected
		if !p.hasPointer {
			p.status.Stage = StageConnecting
			if cc.Connected {
				p.status.Stage = StageWaiting
			}
		}
		p.publish()
	case models.EventSlidePointerUpdated:
		var ptr models.SlidePointer
		err := env.Decode(&ptr)
		if err == nil {
			err = ptr.Validate()
		}
		if err != nil {
			p.log.Warn().Err(err).Msg("dropping slide pointer")
			p.status.Error = err.Error()
			p.publish()
			return
		}
		p.point(ctx, ptr)
	default:
		p.log.Debug().Str(logging.FieldEvent, string(env.Name)).Msg("ignoring event")
	}
}

func (p *Projector) point(ctx context.Context, ptr models.SlidePointer) {
	p.hasPointer = true
	p.status.SlideIndex = ptr.SlideIndex
	p.status.Error = ""

	if p.loadingID == ptr.PresentationID && p.status.Stage != StageError {
		if p.status.Stage == StageReady {
			p.settle()
		} else {
			// same deck still loading; the pointer applies once joined
			p.status.Slide = nil
		}
		p.publish()
		return
	}
	p.startLoad(ctx, ptr.PresentationID)
}

func (p *Projector) startLoad(ctx context.Context, presentationID int64) {
	if p.cancelLoad != nil {
		p.cancelLoad()
	}
	p.seq++
	seq := p.seq
	p.loadingID = presentationID
	loadCtx, cancel := context.WithCancel(ctx)
	p.loadCtx, p.cancelLoad = loadCtx, cancel

	p.status.Stage = StageLoadingData
	p.status.Percent = 0
	p.status.Presentation = nil
	p.status.Slide = nil
	p.total, p.done = 0, 0
	p.mu.Lock()
	p.assets = make(map[string]Asset)
	p.mu.Unlock()
	p.publish()

	p.log.Debug().Int64("presentation_id", presentationID).Uint64("seq", seq).Msg("loading presentation")
	go func() {
		pres, err := p.presentations.ResolvePresentation(loadCtx, presentationID)
		p.send(loadCtx, presentationLoaded{seq: seq, presentation: pres, err: err})
	}()
}

func (p *Projector) send(ctx context.Context, msg loadMsg) {
	select {
	case p.loads <- msg:
	case <-ctx.Done():
	}
}

func (p *Projector) handleLoad(msg loadMsg) {
	switch m := msg.(type) {
	case presentationLoaded:
		if m.seq != p.seq {
			return
		}
		if m.err != nil {
			p.log.Warn().Err(m.err).Msg("presentation failed to load")
			p.status.Stage = StageError
			p.status.Error = m.err.Error()
			p.publish()
			return
		}
		p.preload(m.seq, m.presentation)
	case assetLoaded:
		if m.seq != p.seq {
			return
		}
		p.done++
		if m.err != nil {
			p.metrics.IncPreloadAsset("failed")
			p.log.Warn().Err(m.err).Str("media_url", m.url).Msg("slide media failed, counting as done")
		} else {
			p.metrics.IncPreloadAsset("ok")
			p.mu.Lock()
			p.assets[m.url] = m.asset
			p.mu.Unlock()
		}
		p.status.Percent = p.done * 100 / p.total
		p.publish()
	case preloadJoined:
		if m.seq != p.seq {
			return
		}
		p.status.Percent = 100
		p.status.Stage = StageReady
		p.settle()
		p.log.Info().Int64("presentation_id", p.status.Presentation.ID).Int("slides", len(p.status.Presentation.Slides)).Msg("projection ready")
		p.publish()
	}
}

func (p *Projector) preload(seq uint64, pres *models.Presentation) {
	urls := distinctMedia(pres)
	p.status.Presentation = pres
	p.status.Stage = StagePreloading
	p.status.Percent = 0
	p.total = len(urls)
	p.publish()

	loadCtx := p.loadCtx
	var g errgroup.Group
	for _, u := range urls {
		g.Go(func() error {
			a, err := p.fetcher.Fetch(loadCtx, u)
			p.send(loadCtx, assetLoaded{seq: seq, url: u, asset: a, err: err})
			return nil
		})
	}
	go func() {
		g.Wait()
		p.send(loadCtx, preloadJoined{seq: seq})
	}()
}

func distinctMedia(pres *models.Presentation) []string {
	seen := make(map[string]struct{}, len(pres.Slides))
	var urls []string
	for _, s := range pres.Slides {
		if _, ok := seen[s.MediaURL]; ok {
			continue
		}
		seen[s.MediaURL] = struct{}{}
		urls = append(urls, s.MediaURL)
	}
	return urls
}

// settle resolves the pointer against the ready presentation.
func (p *Projector) settle() {
	slide, ok := p.status.Presentation.SlideAt(p.status.SlideIndex)
	if !ok {
		p.status.Slide = nil
		p.status.Error = fmt.Sprintf("slide %d not in presentation %d", p.status.SlideIndex, p.status.Presentation.ID)
		p.log.Warn().Int("slide_index", p.status.SlideIndex).Msg("pointer outside presentation")
		return
	}
	p.status.Slide = &slide
}

func (p *Projector) move(delta int) error {
	if p.status.Stage != StageReady {
		return ErrNotReady
	}
	slides := p.status.Presentation.Slides
	pos := -1
	for i, s := range slides {
		if s.OrderIndex == p.status.SlideIndex {
			pos = i
			break
		}
	}
	next := pos + delta
	if pos < 0 || next < 0 || next >= len(slides) {
		return ErrOutOfRange
	}
	p.status.SlideIndex = slides[next].OrderIndex
	p.status.Error = ""
	p.settle()
	p.publish()
	return nil
}

func (p *Projector) publish() {
	s := p.status
	p.mu.Lock()
	p.snapshot = s
	p.mu.Unlock()
	p.updates.Publish(s)
}
