// Package content resolves the identifiers carried by channel events into
// the text and media the display surfaces render.
package content

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"worshiplive/internal/models"
)

const (
	ResourceChapter      = "chapter"
	ResourcePresentation = "presentation"
)

type Resolver interface {
	ResolveChapter(ctx context.Context, chapterID int64) (*models.Chapter, error)
	ResolvePresentation(ctx context.Context, presentationID int64) (*models.Presentation, error)
}

var (
	errNoVerses     = errors.New("chapter has no verses")
	errNoSlides     = errors.New("presentation has no slides")
	errMissingMedia = errors.New("slide has no media url")
)

// checkChapter rejects chapters whose verse numbers are not strictly
// increasing, which would make anchors ambiguous.
func checkChapter(id int64, ch *models.Chapter) error {
	if len(ch.Verses) == 0 {
		return models.NewContentError(ResourceChapter, id, errNoVerses)
	}
	for i := 1; i < len(ch.Verses); i++ {
		if ch.Verses[i].Number <= ch.Verses[i-1].Number {
			return models.NewContentError(ResourceChapter, id,
				fmt.Errorf("verse %d follows verse %d", ch.Verses[i].Number, ch.Verses[i-1].Number))
		}
	}
	return nil
}

// normalizePresentation returns a copy of p with slides ordered by index,
// rejecting duplicates. p itself is left as the source returned it.
func normalizePresentation(id int64, p *models.Presentation) (*models.Presentation, error) {
	if len(p.Slides) == 0 {
		return nil, models.NewContentError(ResourcePresentation, id, errNoSlides)
	}
	cp := *p
	cp.Slides = slices.Clone(p.Slides)
	slices.SortStableFunc(cp.Slides, func(a, b models.Slide) int {
		return a.OrderIndex - b.OrderIndex
	})
	for i, s := range cp.Slides {
		if s.MediaURL == "" {
			return nil, models.NewContentError(ResourcePresentation, id, fmt.Errorf("slide %d: %w", s.OrderIndex, errMissingMedia))
		}
		if i > 0 && s.OrderIndex == cp.Slides[i-1].OrderIndex {
			return nil, models.NewContentError(ResourcePresentation, id, fmt.Errorf("duplicate slide index %d", s.OrderIndex))
		}
	}
	return &cp, nil
}
