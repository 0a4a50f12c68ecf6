package store

import (
	"context"
	"fmt"

	"worshiplive/internal/models"
)

func (s *Store) InsertNotice(ctx context.Context, n *models.AdminNotice) error {
	n.CreatedAt = s.utcNow()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_notices (worship_id, message, image_base64, created_at) VALUES (?, ?, ?, ?)`,
		n.WorshipID, n.Message, n.ImageBase64, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// ListNotices returns the most recent notices of a service, newest first.
func (s *Store) ListNotices(ctx context.Context, worshipID int64, limit int) ([]models.AdminNotice, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worship_id, message, image_base64, created_at FROM admin_notices
		 WHERE worship_id = ? ORDER BY id DESC LIMIT ?`, worshipID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notices: %w", err)
	}
	defer rows.Close()

	notices := []models.AdminNotice{}
	for rows.Next() {
		var n models.AdminNotice
		if err := rows.Scan(&n.ID, &n.WorshipID, &n.Message, &n.ImageBase64, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notice: %w", err)
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}
