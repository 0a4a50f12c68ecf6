package content

import (
	"context"

	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

// Source is the subset of the store the resolver reads from.
type Source interface {
	GetChapter(ctx context.Context, chapterID int64) (*models.Chapter, error)
	GetPresentation(ctx context.Context, presentationID int64) (*models.Presentation, error)
}

// StoreResolver resolves against the local database, for surfaces hosted in
// the same process as the store.
type StoreResolver struct {
	src     Source
	metrics *metrics.Metrics
}

func NewStoreResolver(src Source, m *metrics.Metrics) *StoreResolver {
	return &StoreResolver{src: src, metrics: m}
}

func (r *StoreResolver) ResolveChapter(ctx context.Context, chapterID int64) (*models.Chapter, error) {
	ch, err := r.src.GetChapter(ctx, chapterID)
	if err != nil {
		r.metrics.IncContentError(ResourceChapter)
		return nil, models.NewContentError(ResourceChapter, chapterID, err)
	}
	if err := checkChapter(chapterID, ch); err != nil {
		r.metrics.IncContentError(ResourceChapter)
		return nil, err
	}
	return ch, nil
}

func (r *StoreResolver) ResolvePresentation(ctx context.Context, presentationID int64) (*models.Presentation, error) {
	p, err := r.src.GetPresentation(ctx, presentationID)
	if err != nil {
		r.metrics.IncContentError(ResourcePresentation)
		return nil, models.NewContentError(ResourcePresentation, presentationID, err)
	}
	out, err := normalizePresentation(presentationID, p)
	if err != nil {
		r.metrics.IncContentError(ResourcePresentation)
		return nil, err
	}
	return out, nil
}
