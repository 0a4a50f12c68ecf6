package store

import (
	"context"
	"fmt"

	"worshiplive/internal/models"
)

func (s *Store) InsertPrayerRequest(ctx context.Context, p *models.PrayerRequest) error {
	p.CreatedAt = s.utcNow()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prayer_requests (worship_id, name, request, created_at) VALUES (?, ?, ?, ?)`,
		p.WorshipID, p.Name, p.Request, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting prayer request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (s *Store) ListPrayerRequests(ctx context.Context, worshipID int64) ([]models.PrayerRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worship_id, name, request, created_at FROM prayer_requests
		 WHERE worship_id = ? ORDER BY created_at, id`, worshipID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing prayer requests: %w", err)
	}
	defer rows.Close()

	requests := []models.PrayerRequest{}
	for rows.Next() {
		var p models.PrayerRequest
		if err := rows.Scan(&p.ID, &p.WorshipID, &p.Name, &p.Request, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning prayer request: %w", err)
		}
		requests = append(requests, p)
	}
	return requests, rows.Err()
}
