package models

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

// ErrInvalid marks operator input that was rejected before anything changed.
var ErrInvalid = errors.New("invalid input")

type Operator struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Worship struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (w *Worship) Active() bool {
	return w.FinishedAt == nil
}

// Topic is the channel scope for everything broadcast during this service.
func (w *Worship) Topic() string {
	return WorshipTopic(w.ID)
}

type ActivityKind string

const (
	ActivityBibleReading ActivityKind = "bible_reading"
	ActivityHymn         ActivityKind = "hymn"
	ActivityOffering     ActivityKind = "offering"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityBibleReading, ActivityHymn, ActivityOffering:
		return true
	}
	return false
}

// Activity is one operator-initiated unit of live action. Its id separates
// successive occurrences of the same content.
type Activity struct {
	ID         int64        `json:"id"`
	WorshipID  int64        `json:"worship_id"`
	Kind       ActivityKind `json:"kind"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

type PrayerRequest struct {
	ID        int64     `json:"id"`
	WorshipID int64     `json:"worship_id"`
	Name      string    `json:"name,omitempty"`
	Request   string    `json:"request"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PrayerRequest) Validate() error {
	if strings.TrimSpace(p.Request) == "" {
		return errors.New("request is required")
	}
	if len(p.Request) > 2000 {
		return errors.New("request must be at most 2000 characters")
	}
	if len(p.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	return nil
}

type AdminNotice struct {
	ID          int64     `json:"id"`
	WorshipID   int64     `json:"worship_id"`
	Message     string    `json:"message"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type BibleVersion struct {
	ID           int64  `json:"id"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
}

type BibleBook struct {
	ID        int64  `json:"id"`
	VersionID int64  `json:"version_id"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}

type BibleChapter struct {
	ID     int64 `json:"id"`
	BookID int64 `json:"book_id"`
	Number int   `json:"number"`
}

type Verse struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chapter is a resolved chapter: metadata plus its verses ordered by number.
type Chapter struct {
	ID            int64   `json:"id"`
	VersionID     int64   `json:"version_id"`
	BookID        int64   `json:"book_id"`
	BookName      string  `json:"book_name"`
	ChapterNumber int     `json:"chapter_number"`
	Verses        []Verse `json:"verses"`
}

type HymnVerse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type Hymn struct {
	ID     int64       `json:"id,omitempty"`
	Number int         `json:"number,omitempty"`
	Title  string      `json:"title"`
	Chorus string      `json:"chorus,omitempty"`
	Verses []HymnVerse `json:"verses"`
}

func (h *Hymn) HasChorus() bool {
	return strings.TrimSpace(h.Chorus) != ""
}

type Slide struct {
	ID         int64  `json:"id"`
	OrderIndex int    `json:"order_index"`
	MediaURL   string `json:"media_url"`
}

type Presentation struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// SlideAt returns the slide whose OrderIndex equals idx.
func (p *Presentation) SlideAt(idx int) (Slide, bool) {
	for _, s := range p.Slides {
		if s.OrderIndex == idx {
			return s, true
		}
	}
	return Slide{}, false
}
