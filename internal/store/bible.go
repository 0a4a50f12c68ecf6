package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"worshiplive/internal/models"
)

func (s *Store) ListBibleVersions(ctx context.Context) ([]models.BibleVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, abbreviation, name FROM bible_versions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing bible versions: %w", err)
	}
	defer rows.Close()

	versions := []models.BibleVersion{}
	for rows.Next() {
		var v models.BibleVersion
		if err := rows.Scan(&v.ID, &v.Abbreviation, &v.Name); err != nil {
			return nil, fmt.Errorf("scanning bible version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) ListBibleBooks(ctx context.Context, versionID int64) ([]models.BibleBook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version_id, name, book_order FROM bible_books WHERE version_id = ? ORDER BY book_order`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bible books: %w", err)
	}
	defer rows.Close()

	books := []models.BibleBook{}
	for rows.Next() {
		var b models.BibleBook
		if err := rows.Scan(&b.ID, &b.VersionID, &b.Name, &b.Order); err != nil {
			return nil, fmt.Errorf("scanning bible book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *Store) ListBibleChapters(ctx context.Context, bookID int64) ([]models.BibleChapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, number FROM bible_chapters WHERE book_id = ? ORDER BY number`, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing bible chapters: %w", err)
	}
	defer rows.Close()

	chapters := []models.BibleChapter{}
	for rows.Next() {
		var c models.BibleChapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.Number); err != nil {
			return nil, fmt.Errorf("scanning bible chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// GetChapter returns chapter metadata and its verses ordered by number.
func (s *Store) GetChapter(ctx context.Context, chapterID int64) (*models.Chapter, error) {
	c := &models.Chapter{ID: chapterID}
	err := s.db.QueryRowContext(ctx,
		`SELECT b.version_id, b.id, b.name, c.number
		 FROM bible_chapters c INNER JOIN bible_books b ON b.id = c.book_id
		 WHERE c.id = ?`, chapterID,
	).Scan(&c.VersionID, &c.BookID, &c.BookName, &c.ChapterNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %d: %w", chapterID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chapter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, text FROM bible_verses WHERE chapter_id = ? ORDER BY number`, chapterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing verses: %w", err)
	}
	defer rows.Close()

	c.Verses = []models.Verse{}
	for rows.Next() {
		var v models.Verse
		if err := rows.Scan(&v.ID, &v.Number, &v.Text); err != nil {
			return nil, fmt.Errorf("scanning verse: %w", err)
		}
		c.Verses = append(c.Verses, v)
	}
	return c, rows.Err()
}

func (s *Store) CreateBibleVersion(abbreviation, name string) (*models.BibleVersion, error) {
	res, err := s.db.Exec(`INSERT INTO bible_versions (abbreviation, name) VALUES (?, ?)`, abbreviation, name)
	if err != nil {
		return nil, fmt.Errorf("creating bible version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.BibleVersion{ID: id, Abbreviation: abbreviation, Name: name}, nil
}

func (s *Store) CreateBibleBook(versionID int64, name string, order int) (*models.BibleBook, error) {
	res, err := s.db.Exec(
		`INSERT INTO bible_books (version_id, name, book_order) VALUES (?, ?, ?)`, versionID, name, order,
	)
	if err != nil {
		return nil, fmt.Errorf("creating bible book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.BibleBook{ID: id, VersionID: versionID, Name: name, Order: order}, nil
}

// CreateChapter inserts a chapter with its verses numbered from 1.
func (s *Store) CreateChapter(bookID int64, number int, verses []string) (*models.Chapter, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO bible_chapters (book_id, number) VALUES (?, ?)`, bookID, number)
	if err != nil {
		return nil, fmt.Errorf("creating chapter: %w", err)
	}
	chapterID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	c := &models.Chapter{ID: chapterID, BookID: bookID, ChapterNumber: number, Verses: make([]models.Verse, 0, len(verses))}
	for i, text := range verses {
		res, err := tx.Exec(
			`INSERT INTO bible_verses (chapter_id, number, text) VALUES (?, ?, ?)`, chapterID, i+1, text,
		)
		if err != nil {
			return nil, fmt.Errorf("creating verse %d: %w", i+1, err)
		}
		verseID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		c.Verses = append(c.Verses, models.Verse{ID: verseID, Number: i + 1, Text: text})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// VerseBelongsToChapter reports whether verseID is a verse of chapterID.
func (s *Store) VerseBelongsToChapter(ctx context.Context, chapterID, verseID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bible_verses WHERE id = ? AND chapter_id = ?`, verseID, chapterID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking verse: %w", err)
	}
	return n > 0, nil
}
