package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"worshiplive/internal/models"
)

// Catalog is the JSON document used to load Bible text, hymns and slide
// decks into a fresh database.
type Catalog struct {
	Versions      []CatalogVersion      `json:"versions"`
	Hymns         []models.Hymn         `json:"hymns"`
	Presentations []CatalogPresentation `json:"presentations"`
}

type CatalogVersion struct {
	Abbreviation string        `json:"abbreviation"`
	Name         string        `json:"name"`
	Books        []CatalogBook `json:"books"`
}

// CatalogBook lists its chapters in order, each as its verse texts in order.
type CatalogBook struct {
	Name     string     `json:"name"`
	Chapters [][]string `json:"chapters"`
}

type CatalogPresentation struct {
	Title  string   `json:"title"`
	Slides []string `json:"slides"`
}

type ImportStats struct {
	Versions      int
	Chapters      int
	Hymns         int
	Presentations int
}

func ReadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return &c, nil
}

func (s *Store) ImportCatalogFile(path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, err
	}
	defer f.Close()
	c, err := ReadCatalog(f)
	if err != nil {
		return ImportStats{}, err
	}
	return s.ImportCatalog(c)
}

func (s *Store) ImportCatalog(c *Catalog) (ImportStats, error) {
	var st ImportStats
	for _, v := range c.Versions {
		version, err := s.CreateBibleVersion(v.Abbreviation, v.Name)
		if err != nil {
			return st, err
		}
		st.Versions++
		for i, b := range v.Books {
			book, err := s.CreateBibleBook(version.ID, b.Name, i+1)
			if err != nil {
				return st, err
			}
			for n, verses := range b.Chapters {
				if _, err := s.CreateChapter(book.ID, n+1, verses); err != nil {
					return st, fmt.Errorf("%s %s %d: %w", v.Abbreviation, b.Name, n+1, err)
				}
				st.Chapters++
			}
		}
	}
	for i := range c.Hymns {
		if err := s.CreateHymn(&c.Hymns[i]); err != nil {
			return st, err
		}
		st.Hymns++
	}
	for _, p := range c.Presentations {
		if _, err := s.CreatePresentation(p.Title, p.Slides); err != nil {
			return st, err
		}
		st.Presentations++
	}
	return st, nil
}
