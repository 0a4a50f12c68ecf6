package display

import (
	"errors"
	"slices"

	"worshiplive/internal/models"
)

// Action is one input to Reduce.
type Action interface{ action() }

type BibleChapterLoaded struct {
	Event   models.BibleReadingHighlighted
	Chapter *models.Chapter
}

type BibleVersePatched struct {
	Event models.BibleReadingHighlighted
}

type HymnShown struct {
	Presentation models.HymnPresented
}

type OfferingChanged struct {
	Active bool
}

type ContentFailed struct {
	Err error
}

type NoticeReceived struct {
	Notice Notice
	Limit  int
}

type PrayerRequestsChanged struct{}

type ConnectionChanged struct {
	Connected bool
}

func (BibleChapterLoaded) action()    {}
func (BibleVersePatched) action()     {}
func (HymnShown) action()             {}
func (OfferingChanged) action()       {}
func (ContentFailed) action()         {}
func (NoticeReceived) action()        {}
func (PrayerRequestsChanged) action() {}
func (ConnectionChanged) action()     {}

// Effects are instructions for the rendering surface that accompany a
// transition.
type Effects struct {
	ClearOverlay bool   `json:"clear_overlay,omitempty"`
	ScrollTo     string `json:"scroll_to,omitempty"`
}

type Decision string

const (
	Duplicate Decision = "duplicate"
	Patch     Decision = "patch"
	Reload    Decision = "reload"
)

// Classify decides how a Bible highlight applies to s. A patch requires the
// same reading activity, version, book and chapter as the current
// transmission; a new activity id over the same chapter reloads.
func Classify(s State, ev models.BibleReadingHighlighted) Decision {
	if s.Mode != ModeBible || s.Transmission == nil || s.Bible == nil {
		return Reload
	}
	next := ev.Transmission()
	if *s.Transmission == next {
		return Duplicate
	}
	if s.Transmission.SameChapter(next) {
		return Patch
	}
	return Reload
}

var errHymnWithoutVerses = errors.New("hymn has no verses")

// Then combines e with the effects of a later frame. A later transition
// replaces e; a frame without effects keeps them.
func (e Effects) Then(later Effects) Effects {
	if later.ClearOverlay || later.ScrollTo != "" {
		return later
	}
	return e
}

// Reduce applies a to s. It never mutates s; slices shared with s are
// treated as immutable.
func Reduce(s State, a Action) (State, Effects) {
	switch a := a.(type) {
	case BibleChapterLoaded:
		return reduceChapterLoaded(s, a)
	case BibleVersePatched:
		return reduceVersePatched(s, a)
	case HymnShown:
		return reduceHymn(s, a)
	case OfferingChanged:
		s.OfferingActive = a.Active
	case ContentFailed:
		s = fail(s, a.Err)
	case NoticeReceived:
		limit := a.Limit
		if limit <= 0 {
			limit = DefaultNoticeHistory
		}
		notices := make([]Notice, 0, min(len(s.Notices)+1, limit))
		notices = append(notices, a.Notice)
		for _, n := range s.Notices {
			if len(notices) == limit {
				break
			}
			notices = append(notices, n)
		}
		s.Notices = notices
	case PrayerRequestsChanged:
		s.PrayerRevision++
	case ConnectionChanged:
		s.Connected = a.Connected
	}
	return s, Effects{}
}

func fail(s State, err error) State {
	if err == nil {
		return s
	}
	s.Error = err.Error()
	if !s.Displayed() {
		s.Mode = ModeError
	}
	return s
}

func reduceChapterLoaded(s State, a BibleChapterLoaded) (State, Effects) {
	if a.Chapter == nil {
		return fail(s, models.NewContentError("chapter", a.Event.ChapterID, errors.New("no chapter loaded"))), Effects{}
	}
	bookName := a.Chapter.BookName
	if bookName == "" {
		bookName = a.Event.BookName
	}
	number := a.Chapter.ChapterNumber
	if number == 0 {
		number = a.Event.ChapterNumber
	}
	t := a.Event.Transmission()

	s.Mode = ModeBible
	s.Bible = &BiblePayload{
		ChapterID:          a.Chapter.ID,
		BookName:           bookName,
		ChapterNumber:      number,
		Verses:             a.Chapter.Verses,
		HighlightedVerseID: a.Event.VerseID,
	}
	s.Hymn = nil
	s.HighlightedPart = verseAnchor(a.Event.VerseID)
	s.Transmission = &t
	s.Error = ""
	return s, Effects{ClearOverlay: true, ScrollTo: s.HighlightedPart}
}

func reduceVersePatched(s State, a BibleVersePatched) (State, Effects) {
	if Classify(s, a.Event) != Patch {
		return s, Effects{}
	}
	payload := *s.Bible
	payload.HighlightedVerseID = a.Event.VerseID
	t := a.Event.Transmission()

	s.Bible = &payload
	s.HighlightedPart = verseAnchor(a.Event.VerseID)
	s.Transmission = &t
	s.Error = ""
	return s, Effects{ClearOverlay: true, ScrollTo: s.HighlightedPart}
}

func reduceHymn(s State, a HymnShown) (State, Effects) {
	h := a.Presentation.Hymn
	if h == nil || len(h.Verses) == 0 {
		var id int64
		if h != nil {
			id = h.ID
		}
		return fail(s, models.NewContentError("hymn", id, errHymnWithoutVerses)), Effects{}
	}

	key := hymnKey(h)
	focus := s.Focus
	if focus.Hymn != key {
		focus = HymnFocus{Hymn: key}
	}

	var part string
	switch {
	case a.Presentation.VerseFocus > 0:
		part = hymnVerseAnchor(a.Presentation.VerseFocus)
		focus.Verse = a.Presentation.VerseFocus
	case focus.Verse > 0 && h.HasChorus():
		part = chorusAnchor(focus.Verse)
	}

	hymn := *h
	hymn.Verses = slices.Clone(h.Verses)

	s.Mode = ModeHymn
	s.Hymn = &hymn
	s.Bible = nil
	s.HighlightedPart = part
	s.Focus = focus
	s.Error = ""
	return s, Effects{ClearOverlay: true, ScrollTo: part}
}
