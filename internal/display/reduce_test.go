package display

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worshiplive/internal/models"
)

func highlight(activity, chapter, verse int64) models.BibleReadingHighlighted {
	return models.BibleReadingHighlighted{
		ActivityID: activity, VersionID: 1, BookID: 1, ChapterID: chapter, VerseID: verse,
		BookName: "Genesis", ChapterNumber: int(chapter - 99),
	}
}

func chapter(id int64) *models.Chapter {
	return &models.Chapter{
		ID: id, VersionID: 1, BookID: 1, BookName: "Genesis", ChapterNumber: int(id - 99),
		Verses: []models.Verse{
			{ID: 1, Number: 1, Text: "one"},
			{ID: 2, Number: 2, Text: "two"},
			{ID: 3, Number: 3, Text: "three"},
		},
	}
}

func loaded(t *testing.T, ev models.BibleReadingHighlighted) State {
	t.Helper()
	s, _ := Reduce(Initial(), BibleChapterLoaded{Event: ev, Chapter: chapter(ev.ChapterID)})
	require.Equal(t, ModeBible, s.Mode)
	return s
}

func amazingGrace() *models.Hymn {
	return &models.Hymn{
		ID: 7, Title: "Amazing Grace", Chorus: "Refrain",
		Verses: []models.HymnVerse{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}, {Number: 3, Text: "c"}},
	}
}

func TestClassify(t *testing.T) {
	s := loaded(t, highlight(1, 100, 1))

	tests := []struct {
		name string
		ev   models.BibleReadingHighlighted
		want Decision
	}{
		{"same ids", highlight(1, 100, 1), Duplicate},
		{"verse only", highlight(1, 100, 2), Patch},
		{"new chapter", highlight(1, 101, 1), Reload},
		{"new activity same chapter", highlight(2, 100, 2), Reload},
		{"new version", func() models.BibleReadingHighlighted {
			ev := highlight(1, 100, 2)
			ev.VersionID = 2
			return ev
		}(), Reload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(s, tt.ev))
		})
	}
}

func TestClassifyOutsideBibleModeReloads(t *testing.T) {
	assert.Equal(t, Reload, Classify(Initial(), highlight(1, 100, 1)))

	s := loaded(t, highlight(1, 100, 1))
	s, _ = Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 1}})
	assert.Equal(t, Reload, Classify(s, highlight(1, 100, 1)), "re-highlighting after a hymn must show the chapter again")
}

func TestChapterLoadedReplacesPayload(t *testing.T) {
	s, fx := Reduce(Initial(), BibleChapterLoaded{Event: highlight(1, 100, 2), Chapter: chapter(100)})

	assert.Equal(t, ModeBible, s.Mode)
	assert.Equal(t, int64(100), s.Bible.ChapterID)
	assert.Equal(t, "Genesis", s.Bible.BookName)
	assert.Equal(t, int64(2), s.Bible.HighlightedVerseID)
	assert.Equal(t, "verse-2", s.HighlightedPart)
	assert.Equal(t, Effects{ClearOverlay: true, ScrollTo: "verse-2"}, fx)
	require.NotNil(t, s.Transmission)
	assert.Equal(t, highlight(1, 100, 2).Transmission(), *s.Transmission)
}

func TestPatchReusesVerseSlice(t *testing.T) {
	s := loaded(t, highlight(1, 100, 1))
	before := s

	next, fx := Reduce(s, BibleVersePatched{Event: highlight(1, 100, 2)})

	assert.Equal(t, int64(2), next.Bible.HighlightedVerseID)
	assert.Equal(t, "verse-2", fx.ScrollTo)
	assert.True(t, fx.ClearOverlay)
	assert.Same(t, &before.Bible.Verses[0], &next.Bible.Verses[0])
	assert.Equal(t, int64(1), before.Bible.HighlightedVerseID, "input state untouched")
	assert.Equal(t, int64(2), next.Transmission.VerseID)
}

func TestPatchIgnoredWhenNotPatchable(t *testing.T) {
	s := loaded(t, highlight(1, 100, 1))
	next, fx := Reduce(s, BibleVersePatched{Event: highlight(1, 101, 2)})
	assert.Equal(t, s, next)
	assert.Equal(t, Effects{}, fx)
}

func TestHymnFocusThenChorus(t *testing.T) {
	s, fx := Reduce(Initial(), HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 3}})
	assert.Equal(t, ModeHymn, s.Mode)
	assert.Equal(t, "verse-3", s.HighlightedPart)
	assert.Equal(t, "verse-3", fx.ScrollTo)

	s, _ = Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 0}})
	assert.Equal(t, "chorus-after-3", s.HighlightedPart)

	s, _ = Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: -1}})
	assert.Equal(t, "chorus-after-3", s.HighlightedPart)
}

func TestHymnWithoutPriorFocus(t *testing.T) {
	s, fx := Reduce(Initial(), HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 0}})
	assert.Equal(t, ModeHymn, s.Mode)
	assert.Empty(t, s.HighlightedPart)
	assert.Empty(t, fx.ScrollTo)
	assert.True(t, fx.ClearOverlay)
}

func TestHymnFocusDoesNotLeakAcrossHymns(t *testing.T) {
	s, _ := Reduce(Initial(), HymnShown{Presentation: models.HymnPresented{Hymn: amazingGrace(), VerseFocus: 2}})

	other := amazingGrace()
	other.ID = 8
	s, _ = Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: other, VerseFocus: 0}})
	assert.Empty(t, s.HighlightedPart)
}

func TestHymnWithoutChorusHasNoChorusHighlight(t *testing.T) {
	h := amazingGrace()
	h.Chorus = ""
	s, _ := Reduce(Initial(), HymnShown{Presentation: models.HymnPresented{Hymn: h, VerseFocus: 2}})
	s, _ = Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: h, VerseFocus: 0}})
	assert.Empty(t, s.HighlightedPart)
}

func TestHymnWithoutVersesKeepsMode(t *testing.T) {
	s := loaded(t, highlight(1, 100, 1))
	next, fx := Reduce(s, HymnShown{Presentation: models.HymnPresented{Hymn: &models.Hymn{Title: "Empty"}}})

	assert.Equal(t, ModeBible, next.Mode)
	assert.Equal(t, s.Bible, next.Bible)
	assert.NotEmpty(t, next.Error)
	assert.Equal(t, Effects{}, fx)
}

func TestOfferingIsOrthogonalToMode(t *testing.T) {
	for _, start := range []State{Initial(), loaded(t, highlight(1, 100, 1))} {
		s, _ := Reduce(start, OfferingChanged{Active: true})
		assert.True(t, s.OfferingActive)
		assert.Equal(t, start.Mode, s.Mode)

		s, _ = Reduce(s, OfferingChanged{Active: false})
		assert.False(t, s.OfferingActive)
		assert.Equal(t, start.Mode, s.Mode)
	}
}

func TestFailureKeepsPreviousChapter(t *testing.T) {
	s := loaded(t, highlight(1, 100, 1))
	err := models.NewContentError("chapter", 101, models.ErrNotFound)

	next, _ := Reduce(s, ContentFailed{Err: err})
	assert.Equal(t, ModeBible, next.Mode)
	assert.Equal(t, int64(100), next.Bible.ChapterID)
	assert.Equal(t, err.Error(), next.Error)

	next, _ = Reduce(next, BibleVersePatched{Event: highlight(1, 100, 3)})
	assert.Empty(t, next.Error, "next successful transition clears the error")
}

func TestFailureBeforeAnythingDisplayed(t *testing.T) {
	s, _ := Reduce(Initial(), ContentFailed{Err: errors.New("boom")})
	assert.Equal(t, ModeError, s.Mode)
	assert.NotEqual(t, ModeWaiting, s.Mode)
	assert.Equal(t, "boom", s.Error)

	s, _ = Reduce(s, BibleChapterLoaded{Event: highlight(1, 100, 1), Chapter: chapter(100)})
	assert.Equal(t, ModeBible, s.Mode)
	assert.Empty(t, s.Error)
}

func TestNoticesNewestFirstAndCapped(t *testing.T) {
	s := Initial()
	for i, msg := range []string{"a", "b", "c"} {
		s, _ = Reduce(s, NoticeReceived{
			Notice: Notice{Message: msg, ReceivedAt: time.Unix(int64(i), 0)},
			Limit:  2,
		})
	}
	require.Len(t, s.Notices, 2)
	assert.Equal(t, "c", s.Notices[0].Message)
	assert.Equal(t, "b", s.Notices[1].Message)
}

func TestPrayerAndConnection(t *testing.T) {
	s, _ := Reduce(Initial(), PrayerRequestsChanged{})
	s, _ = Reduce(s, PrayerRequestsChanged{})
	assert.Equal(t, uint64(2), s.PrayerRevision)

	s, _ = Reduce(s, ConnectionChanged{Connected: true})
	assert.True(t, s.Connected)
	assert.Equal(t, ModeWaiting, s.Mode)
}

func TestEffectsThen(t *testing.T) {
	scroll := Effects{ClearOverlay: true, ScrollTo: "verse-7"}
	assert.Equal(t, scroll, scroll.Then(Effects{}))
	assert.Equal(t, Effects{ClearOverlay: true}, scroll.Then(Effects{ClearOverlay: true}))
	assert.Equal(t, Effects{}, Effects{}.Then(Effects{}))
}
