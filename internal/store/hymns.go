package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"worshiplive/internal/models"
)

func (s *Store) ListHymns(ctx context.Context) ([]models.Hymn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, number, title, chorus FROM hymns ORDER BY number, title`)
	if err != nil {
		return nil, fmt.Errorf("listing hymns: %w", err)
	}
	defer rows.Close()

	hymns := []models.Hymn{}
	for rows.Next() {
		var h models.Hymn
		if err := rows.Scan(&h.ID, &h.Number, &h.Title, &h.Chorus); err != nil {
			return nil, fmt.Errorf("scanning hymn: %w", err)
		}
		hymns = append(hymns, h)
	}
	return hymns, rows.Err()
}

func (s *Store) GetHymn(ctx context.Context, id int64) (*models.Hymn, error) {
	h := &models.Hymn{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, number, title, chorus FROM hymns WHERE id = ?`, id,
	).Scan(&h.ID, &h.Number, &h.Title, &h.Chorus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("hymn %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting hymn: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT number, text FROM hymn_verses WHERE hymn_id = ? ORDER BY number`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing hymn verses: %w", err)
	}
	defer rows.Close()

	h.Verses = []models.HymnVerse{}
	for rows.Next() {
		var v models.HymnVerse
		if err := rows.Scan(&v.Number, &v.Text); err != nil {
			return nil, fmt.Errorf("scanning hymn verse: %w", err)
		}
		h.Verses = append(h.Verses, v)
	}
	return h, rows.Err()
}

func (s *Store) CreateHymn(h *models.Hymn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO hymns (number, title, chorus) VALUES (?, ?, ?)`, h.Number, h.Title, h.Chorus)
	if err != nil {
		return fmt.Errorf("creating hymn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, v := range h.Verses {
		if _, err := tx.Exec(
			`INSERT INTO hymn_verses (hymn_id, number, text) VALUES (?, ?, ?)`, id, v.Number, v.Text,
		); err != nil {
			return fmt.Errorf("creating hymn verse %d: %w", v.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	h.ID = id
	return nil
}
