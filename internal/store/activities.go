package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"worshiplive/internal/models"
)

const activityColumns = `id, worship_id, kind, started_at, finished_at`

func scanActivity(row scanner) (*models.Activity, error) {
	var a models.Activity
	var fin nullTime
	if err := row.Scan(&a.ID, &a.WorshipID, &a.Kind, &a.StartedAt, &fin); err != nil {
		return nil, err
	}
	a.FinishedAt = fin.Time
	return &a, nil
}

func (s *Store) StartActivity(ctx context.Context, worshipID int64, kind models.ActivityKind) (*models.Activity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
	now := s.utcNow()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (worship_id, kind, started_at) VALUES (?, ?, ?)`, worshipID, kind, now,
	)
	if err != nil {
		return nil, fmt.Errorf("starting activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Activity{ID: id, WorshipID: worshipID, Kind: kind, StartedAt: now}, nil
}

func (s *Store) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting activity: %w", err)
	}
	return a, nil
}

// OpenActivity returns the most recent unfinished activity of a kind.
func (s *Store) OpenActivity(ctx context.Context, worshipID int64, kind models.ActivityKind) (*models.Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE worship_id = ? AND kind = ? AND finished_at IS NULL
		 ORDER BY id DESC LIMIT 1`, worshipID, kind,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open %s activity: %w", kind, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting open activity: %w", err)
	}
	return a, nil
}

func (s *Store) FinishActivity(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET finished_at = ? WHERE id = ? AND finished_at IS NULL`, s.utcNow(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("open activity %d: %w", id, models.ErrNotFound)
	}
	return nil
}
