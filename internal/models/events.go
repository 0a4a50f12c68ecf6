package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EventName string

const (
	EventBibleReadingHighlighted EventName = "BibleReadingHighlighted"
	EventHymnPresented           EventName = "HymnPresented"
	EventOfferingPresented       EventName = "OfferingPresented"
	EventOfferingFinished        EventName = "OfferingFinished"
	EventPrayerRequestReceived   EventName = "PrayerRequestReceived"
	EventAdminNoticeReceived     EventName = "AdminNoticeReceived"
	EventSlidePointerUpdated     EventName = "SlidePointerUpdated"

	// EventConnectionChanged never crosses the hub. Channel sessions emit it
	// locally when their connectivity flips.
	EventConnectionChanged EventName = "ConnectionChanged"
)

const topicPrefix = "worship-"

func WorshipTopic(worshipID int64) string {
	return topicPrefix + strconv.FormatInt(worshipID, 10)
}

// ParseWorshipTopic extracts the worship id from a topic name.
func ParseWorshipTopic(topic string) (int64, error) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return 0, fmt.Errorf("topic %q: missing %q prefix", topic, topicPrefix)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("topic %q: invalid worship id", topic)
	}
	return id, nil
}

// Envelope is the wire form of every message published on a topic.
type Envelope struct {
	Name    EventName       `json:"event"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

func NewEnvelope(name EventName, topic string, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", name, err)
		}
		raw = data
	}
	return &Envelope{
		Name:    name,
		Topic:   topic,
		Payload: raw,
		SentAt:  time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v. A malformed payload is reported as a
// ValidationError so it ends up in the same visible error path as missing fields.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return &ValidationError{Event: e.Name, Field: "payload", Reason: "is empty"}
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return &ValidationError{Event: e.Name, Field: "payload", Reason: err.Error()}
	}
	return nil
}

type BibleReadingHighlighted struct {
	ActivityID    int64  `json:"activity_id"`
	VersionID     int64  `json:"version_id"`
	BookID        int64  `json:"book_id"`
	ChapterID     int64  `json:"chapter_id"`
	VerseID       int64  `json:"verse_id"`
	BookName      string `json:"book_name"`
	ChapterNumber int    `json:"chapter_number"`
}

func (e BibleReadingHighlighted) Validate() error {
	required := []struct {
		field string
		value int64
	}{
		{"activity_id", e.ActivityID},
		{"version_id", e.VersionID},
		{"book_id", e.BookID},
		{"chapter_id", e.ChapterID},
		{"verse_id", e.VerseID},
	}
	for _, r := range required {
		if r.value <= 0 {
			return &ValidationError{Event: EventBibleReadingHighlighted, Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

func (e BibleReadingHighlighted) Transmission() BibleTransmission {
	return BibleTransmission{
		ActivityID: e.ActivityID,
		VersionID:  e.VersionID,
		BookID:     e.BookID,
		ChapterID:  e.ChapterID,
		VerseID:    e.VerseID,
	}
}

// BibleTransmission is the last fully applied Bible broadcast on a topic.
type BibleTransmission struct {
	ActivityID int64 `json:"activity_id"`
	VersionID  int64 `json:"version_id"`
	BookID     int64 `json:"book_id"`
	ChapterID  int64 `json:"chapter_id"`
	VerseID    int64 `json:"verse_id"`
}

// SameChapter reports whether both transmissions point into the same chapter
// of the same reading activity.
func (t BibleTransmission) SameChapter(o BibleTransmission) bool {
	return t.ActivityID == o.ActivityID &&
		t.VersionID == o.VersionID &&
		t.BookID == o.BookID &&
		t.ChapterID == o.ChapterID
}

type HymnPresented struct {
	Hymn       *Hymn `json:"hymn"`
	VerseFocus int   `json:"verse_focus"`
}

type OfferingPresented struct {
	ActivityID int64 `json:"activity_id"`
}

type OfferingFinished struct{}

// PrayerRequestReceived is a bare signal; listeners refetch the list.
type PrayerRequestReceived struct{}

type AdminNoticeReceived struct {
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

func (e AdminNoticeReceived) Validate() error {
	if strings.TrimSpace(e.Message) == "" {
		return &ValidationError{Event: EventAdminNoticeReceived, Field: "message", Reason: "is required"}
	}
	return nil
}

type SlidePointer struct {
	PresentationID int64 `json:"presentation_id"`
	SlideIndex     int   `json:"slide_index"`
}

func (p SlidePointer) Validate() error {
	if p.PresentationID <= 0 {
		return &ValidationError{Event: EventSlidePointerUpdated, Field: "presentation_id", Reason: "is required"}
	}
	if p.SlideIndex < 0 {
		return &ValidationError{Event: EventSlidePointerUpdated, Field: "slide_index", Reason: "must not be negative"}
	}
	return nil
}

type ConnectionChanged struct {
	Connected bool `json:"connected"`
}
