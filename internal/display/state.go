// Package display turns channel events into the state an audience surface
// renders. Reduce and Classify are pure; Controller owns one State per
// topic and feeds it from a channel subscription.
package display

import (
	"fmt"
	"time"

	"worshiplive/internal/models"
)

type Mode string

const (
	ModeWaiting Mode = "waiting"
	ModeBible   Mode = "bible"
	ModeHymn    Mode = "hymn"
	// ModeError is only used while nothing has ever been displayed. Later
	// failures keep the current mode and set State.Error.
	ModeError Mode = "error"
)

const DefaultNoticeHistory = 10

type BiblePayload struct {
	ChapterID          int64          `json:"chapter_id"`
	BookName           string         `json:"book_name"`
	ChapterNumber      int            `json:"chapter_number"`
	Verses             []models.Verse `json:"verses"`
	HighlightedVerseID int64          `json:"highlighted_verse_id"`
}

// HasVerse reports whether verseID belongs to the loaded chapter.
func (p *BiblePayload) HasVerse(verseID int64) bool {
	for _, v := range p.Verses {
		if v.ID == verseID {
			return true
		}
	}
	return false
}

// HymnFocus remembers the last verse focused within one hymn.
type HymnFocus struct {
	Hymn  string `json:"hymn"`
	Verse int    `json:"verse"`
}

type Notice struct {
	Message     string    `json:"message"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

type State struct {
	Mode            Mode          `json:"mode"`
	Bible           *BiblePayload `json:"bible,omitempty"`
	Hymn            *models.Hymn  `json:"hymn,omitempty"`
	HighlightedPart string        `json:"highlighted_part,omitempty"`
	OfferingActive  bool          `json:"offering_active"`
	Error           string        `json:"error,omitempty"`
	Connected       bool          `json:"connected"`

	Notices        []Notice `json:"notices"`
	PrayerRevision uint64   `json:"prayer_revision"`

	Transmission *models.BibleTransmission `json:"transmission,omitempty"`
	Focus        HymnFocus                 `json:"-"`
}

func Initial() State {
	return State{Mode: ModeWaiting, Notices: []Notice{}}
}

// Displayed reports whether a Bible or hymn payload has ever been applied.
func (s State) Displayed() bool {
	return s.Mode == ModeBible || s.Mode == ModeHymn
}

func verseAnchor(verseID int64) string {
	return fmt.Sprintf("verse-%d", verseID)
}

func hymnVerseAnchor(n int) string {
	return fmt.Sprintf("verse-%d", n)
}

func chorusAnchor(afterVerse int) string {
	return fmt.Sprintf("chorus-after-%d", afterVerse)
}

// hymnKey identifies a hymn across events: stored hymns by id, ad hoc ones
// by title.
func hymnKey(h *models.Hymn) string {
	if h.ID > 0 {
		return fmt.Sprintf("id:%d", h.ID)
	}
	return "title:" + h.Title
}
