package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"worshiplive/internal/models"
)

var ErrSetupComplete = errors.New("setup already complete")

func (s *Store) CountOperators() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return n, nil
}

// CreateFirstOperator inserts the initial operator account. It fails with
// ErrSetupComplete once any operator exists.
func (s *Store) CreateFirstOperator(username, passwordHash string) (*models.Operator, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return nil, fmt.Errorf("counting operators: %w", err)
	}
	if n > 0 {
		return nil, ErrSetupComplete
	}

	op, err := insertOperator(tx, username, passwordHash, s.utcNow())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Store) CreateOperator(username, passwordHash string) (*models.Operator, error) {
	return insertOperator(s.db, username, passwordHash, s.utcNow())
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertOperator(db execer, username, passwordHash string, now time.Time) (*models.Operator, error) {
	res, err := db.Exec(
		`INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Operator{ID: id, Username: username, CreatedAt: now}, nil
}

// GetOperatorByUsername returns the operator and its password hash.
func (s *Store) GetOperatorByUsername(username string) (*models.Operator, string, error) {
	var op models.Operator
	var hash string
	err := s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM operators WHERE username = ?`, username,
	).Scan(&op.ID, &op.Username, &hash, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("operator %q: %w", username, models.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting operator: %w", err)
	}
	return &op, hash, nil
}
