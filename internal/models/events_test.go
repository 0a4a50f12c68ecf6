package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorshipTopicRoundTrip(t *testing.T) {
	topic := WorshipTopic(42)
	assert.Equal(t, "worship-42", topic)

	id, err := ParseWorshipTopic(topic)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestParseWorshipTopicRejectsGarbage(t *testing.T) {
	for _, topic := range []string{"", "42", "worship-", "worship-abc", "worship--1", "room-42"} {
		_, err := ParseWorshipTopic(topic)
		assert.Error(t, err, topic)
	}
}

func TestBibleEventValidate(t *testing.T) {
	ev := BibleReadingHighlighted{ActivityID: 1, VersionID: 1, BookID: 1, ChapterID: 100, VerseID: 1}
	require.NoError(t, ev.Validate())

	ev.ChapterID = 0
	err := ev.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "chapter_id", ve.Field)
	assert.Equal(t, EventBibleReadingHighlighted, ve.Event)
}

func TestTransmissionSameChapter(t *testing.T) {
	a := BibleTransmission{ActivityID: 1, VersionID: 1, BookID: 1, ChapterID: 100, VerseID: 1}
	b := a
	b.VerseID = 2
	assert.True(t, a.SameChapter(b))

	b.ActivityID = 2
	assert.False(t, a.SameChapter(b), "a new activity over the same chapter is a different reading")
}

func TestEnvelopeDecode(t *testing.T) {
	env, err := NewEnvelope(EventSlidePointerUpdated, "worship-1", SlidePointer{PresentationID: 7, SlideIndex: 2})
	require.NoError(t, err)

	var p SlidePointer
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, SlidePointer{PresentationID: 7, SlideIndex: 2}, p)
}

func TestEnvelopeDecodeMalformed(t *testing.T) {
	env := &Envelope{Name: EventHymnPresented, Payload: []byte(`{"hymn":`)}
	var p HymnPresented
	err := env.Decode(&p)
	assert.True(t, IsValidationError(err))

	empty := &Envelope{Name: EventHymnPresented}
	assert.True(t, IsValidationError(empty.Decode(&p)))
}

func TestContentErrorUnwrap(t *testing.T) {
	err := NewContentError("chapter", 100, ErrNotFound)
	assert.True(t, IsContentError(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "resolving chapter 100: not found", err.Error())
}

func TestPresentationSlideAt(t *testing.T) {
	p := Presentation{ID: 1, Slides: []Slide{{OrderIndex: 0}, {OrderIndex: 1, MediaURL: "b"}, {OrderIndex: 2}}}
	s, ok := p.SlideAt(1)
	require.True(t, ok)
	assert.Equal(t, "b", s.MediaURL)

	_, ok = p.SlideAt(5)
	assert.False(t, ok)
}
