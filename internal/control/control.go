// Package control implements the operator's mutating operations. Every
// operation persists first and then publishes the matching event on the
// worship's topic.
package control

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/models"
	"worshiplive/internal/notifier"
	"worshiplive/internal/store"
)

const (
	maxNoticeMessage = 500
	maxNoticeImage   = 512 << 10
	maxTitle         = 200
	notifyTimeout    = 30 * time.Second
)

type Publisher interface {
	Publish(ctx context.Context, env *models.Envelope) error
}

type Service struct {
	store    *store.Store
	pub      Publisher
	notifier *notifier.Notifier
	log      zerolog.Logger
}

type Option func(*Service)

func WithNotifier(n *notifier.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func New(st *store.Store, pub Publisher, opts ...Option) *Service {
	s := &Service{
		store: st,
		pub:   pub,
		log:   logging.Component("control"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalid, fmt.Sprintf(format, args...))
}

func (s *Service) publish(ctx context.Context, w *models.Worship, name models.EventName, payload any) error {
	env, err := models.NewEnvelope(name, w.Topic(), payload)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, env); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	s.log.Info().Str(logging.FieldTopic, env.Topic).Str(logging.FieldEvent, string(name)).Msg("published")
	return nil
}

// activeWorship loads a worship and rejects finished ones.
func (s *Service) activeWorship(ctx context.Context, id int64) (*models.Worship, error) {
	w, err := s.store.GetWorship(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.Active() {
		return nil, fmt.Errorf("worship %d is finished: %w", id, models.ErrConflict)
	}
	return w, nil
}

func (s *Service) StartWorship(ctx context.Context, title string) (*models.Worship, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if len(title) > maxTitle {
		return nil, invalid("title must be at most %d characters", maxTitle)
	}
	w, err := s.store.StartWorship(ctx, title)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("worship_id", w.ID).Str(logging.FieldTopic, w.Topic()).Msg("worship started")
	return w, nil
}

func (s *Service) FinishWorship(ctx context.Context, worshipID int64) error {
	if err := s.store.FinishWorship(ctx, worshipID); err != nil {
		return err
	}
	s.log.Info().Int64("worship_id", worshipID).Msg("worship finished")
	return nil
}

type Highlight struct {
	ActivityID int64 `json:"activity_id"`
	VersionID  int64 `json:"version_id"`
	BookID     int64 `json:"book_id"`
	ChapterID  int64 `json:"chapter_id"`
	VerseID    int64 `json:"verse_id"`
}

// HighlightVerse broadcasts a verse. Without an activity id a new reading
// activity starts, so displays reload even when the chapter is unchanged.
func (s *Service) HighlightVerse(ctx context.Context, worshipID int64, h Highlight) (*models.BibleReadingHighlighted, error) {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return nil, err
	}
	ch, err := s.store.GetChapter(ctx, h.ChapterID)
	if err != nil {
		return nil, err
	}
	if ch.VersionID != h.VersionID || ch.BookID != h.BookID {
		return nil, invalid("chapter %d is not in book %d of version %d", h.ChapterID, h.BookID, h.VersionID)
	}
	ok, err := s.store.VerseBelongsToChapter(ctx, h.ChapterID, h.VerseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalid("verse %d is not in chapter %d", h.VerseID, h.ChapterID)
	}

	activityID := h.ActivityID
	if activityID == 0 {
		a, err := s.store.StartActivity(ctx, w.ID, models.ActivityBibleReading)
		if err != nil {
			return nil, err
		}
		activityID = a.ID
	} else if _, err := s.ownActivity(ctx, w.ID, activityID, models.ActivityBibleReading); err != nil {
		return nil, err
	}

	ev := &models.BibleReadingHighlighted{
		ActivityID:    activityID,
		VersionID:     h.VersionID,
		BookID:        h.BookID,
		ChapterID:     h.ChapterID,
		VerseID:       h.VerseID,
		BookName:      ch.BookName,
		ChapterNumber: ch.ChapterNumber,
	}
	if err := s.publish(ctx, w, models.EventBibleReadingHighlighted, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ownActivity loads an unfinished activity of the given kind belonging to
// the worship.
func (s *Service) ownActivity(ctx context.Context, worshipID, activityID int64, kind models.ActivityKind) (*models.Activity, error) {
	a, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a.WorshipID != worshipID || a.Kind != kind {
		return nil, fmt.Errorf("%s activity %d: %w", kind, activityID, models.ErrNotFound)
	}
	if a.FinishedAt != nil {
		return nil, fmt.Errorf("activity %d is finished: %w", activityID, models.ErrConflict)
	}
	return a, nil
}

type HymnRequest struct {
	HymnID     int64 `json:"hymn_id"`
	VerseFocus int   `json:"verse_focus"`
}

func (s *Service) PresentHymn(ctx context.Context, worshipID int64, r HymnRequest) (*models.HymnPresented, error) {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return nil, err
	}
	hymn, err := s.store.GetHymn(ctx, r.HymnID)
	if err != nil {
		return nil, err
	}
	if len(hymn.Verses) == 0 {
		return nil, invalid("hymn %d has no verses", r.HymnID)
	}
	if r.VerseFocus > 0 && !hasHymnVerse(hymn, r.VerseFocus) {
		return nil, invalid("hymn %d has no verse %d", r.HymnID, r.VerseFocus)
	}
	if _, err := s.store.OpenActivity(ctx, w.ID, models.ActivityHymn); errors.Is(err, models.ErrNotFound) {
		if _, err := s.store.StartActivity(ctx, w.ID, models.ActivityHymn); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	ev := &models.HymnPresented{Hymn: hymn, VerseFocus: r.VerseFocus}
	if err := s.publish(ctx, w, models.EventHymnPresented, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func hasHymnVerse(h *models.Hymn, n int) bool {
	for _, v := range h.Verses {
		if v.Number == n {
			return true
		}
	}
	return false
}

// StartOffering opens the offering and returns the activity the operator
// must present to finish it.
func (s *Service) StartOffering(ctx context.Context, worshipID int64) (*models.Activity, error) {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return nil, err
	}
	if open, err := s.store.OpenActivity(ctx, w.ID, models.ActivityOffering); err == nil {
		return nil, fmt.Errorf("offering %d already open: %w", open.ID, models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	a, err := s.store.StartActivity(ctx, w.ID, models.ActivityOffering)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, w, models.EventOfferingPresented, models.OfferingPresented{ActivityID: a.ID}); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) FinishOffering(ctx context.Context, worshipID, activityID int64) error {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return err
	}
	if _, err := s.ownActivity(ctx, w.ID, activityID, models.ActivityOffering); err != nil {
		return err
	}
	if err := s.store.FinishActivity(ctx, activityID); err != nil {
		return err
	}
	return s.publish(ctx, w, models.EventOfferingFinished, models.OfferingFinished{})
}

func (s *Service) SendNotice(ctx context.Context, worshipID int64, message, imageBase64 string) (*models.AdminNotice, error) {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return nil, err
	}
	ev := models.AdminNoticeReceived{Message: strings.TrimSpace(message), ImageBase64: imageBase64}
	if err := ev.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if len(ev.Message) > maxNoticeMessage {
		return nil, invalid("message must be at most %d characters", maxNoticeMessage)
	}
	if ev.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(ev.ImageBase64)
		if err != nil {
			return nil, invalid("image is not valid base64")
		}
		if len(img) > maxNoticeImage {
			return nil, invalid("image must be at most %d bytes", maxNoticeImage)
		}
	}

	n := &models.AdminNotice{WorshipID: w.ID, Message: ev.Message, ImageBase64: ev.ImageBase64}
	if err := s.store.InsertNotice(ctx, n); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, w, models.EventAdminNoticeReceived, ev); err != nil {
		return nil, err
	}
	return n, nil
}

// SubmitPrayerRequest is open to the congregation. Staff notifications run
// in the background and never fail the submission.
func (s *Service) SubmitPrayerRequest(ctx context.Context, worshipID int64, name, request string) (*models.PrayerRequest, error) {
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return nil, err
	}
	p := &models.PrayerRequest{WorshipID: w.ID, Name: strings.TrimSpace(name), Request: strings.TrimSpace(request)}
	if err := p.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.store.InsertPrayerRequest(ctx, p); err != nil {
		return nil, err
	}
	if err := s.publish(ctx, w, models.EventPrayerRequestReceived, models.PrayerRequestReceived{}); err != nil {
		return nil, err
	}

	if s.notifier.Enabled() {
		go func() {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyPrayerRequest(nctx, w, p); err != nil {
				s.log.Warn().Err(err).Int64("request_id", p.ID).Msg("prayer request notification failed")
			}
		}()
	}
	return p, nil
}

func (s *Service) ListPrayerRequests(ctx context.Context, worshipID int64) ([]models.PrayerRequest, error) {
	if _, err := s.store.GetWorship(ctx, worshipID); err != nil {
		return nil, err
	}
	return s.store.ListPrayerRequests(ctx, worshipID)
}

func (s *Service) ListNotices(ctx context.Context, worshipID int64, limit int) ([]models.AdminNotice, error) {
	if _, err := s.store.GetWorship(ctx, worshipID); err != nil {
		return nil, err
	}
	return s.store.ListNotices(ctx, worshipID, limit)
}

// PointSlide moves the projection. The slide must exist in the presentation.
func (s *Service) PointSlide(ctx context.Context, worshipID int64, ptr models.SlidePointer) error {
	if err := ptr.Validate(); err != nil {
		return invalid("%v", err)
	}
	w, err := s.activeWorship(ctx, worshipID)
	if err != nil {
		return err
	}
	p, err := s.store.GetPresentation(ctx, ptr.PresentationID)
	if err != nil {
		return err
	}
	if _, ok := p.SlideAt(ptr.SlideIndex); !ok {
		return invalid("presentation %d has no slide %d", ptr.PresentationID, ptr.SlideIndex)
	}
	return s.publish(ctx, w, models.EventSlidePointerUpdated, ptr)
}
