package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"worshiplive/internal/models"
)

func (s *Store) GetPresentation(ctx context.Context, id int64) (*models.Presentation, error) {
	p := &models.Presentation{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT title FROM presentations WHERE id = ?`, id).Scan(&p.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("presentation %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting presentation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_index, media_url FROM slides WHERE presentation_id = ? ORDER BY order_index`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing slides: %w", err)
	}
	defer rows.Close()

	p.Slides = []models.Slide{}
	for rows.Next() {
		var sl models.Slide
		if err := rows.Scan(&sl.ID, &sl.OrderIndex, &sl.MediaURL); err != nil {
			return nil, fmt.Errorf("scanning slide: %w", err)
		}
		p.Slides = append(p.Slides, sl)
	}
	return p, rows.Err()
}

// CreatePresentation stores a presentation whose slides take their order
// from the position of each media URL.
func (s *Store) CreatePresentation(title string, mediaURLs []string) (*models.Presentation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO presentations (title, created_at) VALUES (?, ?)`, title, s.utcNow())
	if err != nil {
		return nil, fmt.Errorf("creating presentation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	p := &models.Presentation{ID: id, Title: title, Slides: make([]models.Slide, 0, len(mediaURLs))}
	for i, u := range mediaURLs {
		res, err := tx.Exec(
			`INSERT INTO slides (presentation_id, order_index, media_url) VALUES (?, ?, ?)`, id, i, u,
		)
		if err != nil {
			return nil, fmt.Errorf("creating slide %d: %w", i, err)
		}
		slideID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		p.Slides = append(p.Slides, models.Slide{ID: slideID, OrderIndex: i, MediaURL: u})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}
