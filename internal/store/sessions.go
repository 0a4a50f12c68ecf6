package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"worshiplive/internal/models"
)

// Session tokens go to the browser; only their SHA-256 is stored, so a
// leaked database does not hand out live operator sessions.
func newSessionToken() (token, id string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, sessionID(token), nil
}

func sessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession returns the bearer token for a new operator session.
func (s *Store) CreateSession(ctx context.Context, operatorID int64, expiresAt time.Time) (string, error) {
	token, id, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	now := s.utcNow()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, operator_id, created_at, last_used_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		id, operatorID, now, now, expiresAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// SessionOperator returns the operator owning an unexpired session and
// records the use.
func (s *Store) SessionOperator(ctx context.Context, token string) (*models.Operator, error) {
	id := sessionID(token)
	now := s.utcNow()

	var op models.Operator
	err := s.db.QueryRowContext(ctx,
		`SELECT o.id, o.username, o.created_at FROM operators o
		 INNER JOIN sessions s ON s.operator_id = o.id
		 WHERE s.id = ? AND s.expires_at > ?`,
		id, now,
	).Scan(&op.ID, &op.Username, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session operator: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = ? WHERE id = ?`, now, id); err != nil {
		return nil, fmt.Errorf("touching session: %w", err)
	}
	return &op, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions past expiry and reports how many.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.utcNow())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
