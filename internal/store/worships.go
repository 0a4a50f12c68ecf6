package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"worshiplive/internal/models"
)

func scanWorship(row scanner) (*models.Worship, error) {
	var w models.Worship
	var fin nullTime
	if err := row.Scan(&w.ID, &w.Title, &w.StartedAt, &fin); err != nil {
		return nil, err
	}
	w.FinishedAt = fin.Time
	return &w, nil
}

func (s *Store) StartWorship(ctx context.Context, title string) (*models.Worship, error) {
	now := s.utcNow()
	res, err := s.db.ExecContext(ctx, `INSERT INTO worships (title, started_at) VALUES (?, ?)`, title, now)
	if err != nil {
		return nil, fmt.Errorf("starting worship: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Worship{ID: id, Title: title, StartedAt: now}, nil
}

func (s *Store) GetWorship(ctx context.Context, id int64) (*models.Worship, error) {
	w, err := scanWorship(s.db.QueryRowContext(ctx,
		`SELECT id, title, started_at, finished_at FROM worships WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worship %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting worship: %w", err)
	}
	return w, nil
}

func (s *Store) ListActiveWorships(ctx context.Context) ([]models.Worship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, started_at, finished_at FROM worships WHERE finished_at IS NULL ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing worships: %w", err)
	}
	defer rows.Close()

	worships := []models.Worship{}
	for rows.Next() {
		w, err := scanWorship(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning worship: %w", err)
		}
		worships = append(worships, *w)
	}
	return worships, rows.Err()
}

// FinishWorship marks the service finished along with any open activities.
func (s *Store) FinishWorship(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.utcNow()
	res, err := tx.ExecContext(ctx,
		`UPDATE worships SET finished_at = ? WHERE id = ? AND finished_at IS NULL`, now, id,
	)
	if err != nil {
		return fmt.Errorf("finishing worship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("active worship %d: %w", id, models.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE activities SET finished_at = ? WHERE worship_id = ? AND finished_at IS NULL`, now, id,
	); err != nil {
		return fmt.Errorf("finishing activities: %w", err)
	}
	return tx.Commit()
}

// FinishStaleWorships closes services started before cutoff that were never
// finished, returning how many were closed.
func (s *Store) FinishStaleWorships(ctx context.Context, cutoff time.Time) (int64, error) {
	now := s.utcNow()
	res, err := s.db.ExecContext(ctx,
		`UPDATE worships SET finished_at = ? WHERE finished_at IS NULL AND started_at < ?`, now, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("finishing stale worships: %w", err)
	}
	return res.RowsAffected()
}
