package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worshiplive/internal/models"
)

func genesisOne() *models.Chapter {
	return &models.Chapter{
		ID: 100, VersionID: 1, BookID: 10, BookName: "Genesis", ChapterNumber: 1,
		Verses: []models.Verse{
			{ID: 1000, Number: 1, Text: "In the beginning"},
			{ID: 1001, Number: 2, Text: "And the earth"},
		},
	}
}

func newContentServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"not found"}`)
			return
		}
		json.NewEncoder(w).Encode(v)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientResolveChapter(t *testing.T) {
	srv := newContentServer(t, map[string]any{"/api/bible/chapters/100": genesisOne()})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	ch, err := c.ResolveChapter(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "Genesis", ch.BookName)
	assert.Len(t, ch.Verses, 2)
}

func TestClientNotFoundIsContentError(t *testing.T) {
	srv := newContentServer(t, nil)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.ResolveChapter(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, models.IsContentError(err))
	assert.True(t, errors.Is(err, models.ErrNotFound))

	var ce *models.ContentResolutionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ResourceChapter, ce.Resource)
	assert.Equal(t, int64(404), ce.ID)
}

func TestClientRejectsUnorderedVerses(t *testing.T) {
	bad := genesisOne()
	bad.Verses[0].Number, bad.Verses[1].Number = 2, 1
	srv := newContentServer(t, map[string]any{"/api/bible/chapters/100": bad})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.ResolveChapter(context.Background(), 100)
	assert.True(t, models.IsContentError(err))
	assert.False(t, errors.Is(err, models.ErrNotFound))
}

func TestClientResolvePresentationOrdersSlides(t *testing.T) {
	srv := newContentServer(t, map[string]any{
		"/api/presentations/5": models.Presentation{ID: 5, Title: "Announcements", Slides: []models.Slide{
			{ID: 3, OrderIndex: 2, MediaURL: "/c.png"},
			{ID: 1, OrderIndex: 0, MediaURL: "/a.png"},
			{ID: 2, OrderIndex: 1, MediaURL: "/b.png"},
		}},
		"/api/presentations/6": models.Presentation{ID: 6, Title: "Empty"},
	})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	p, err := c.ResolvePresentation(context.Background(), 5)
	require.NoError(t, err)
	var order []int
	for _, s := range p.Slides {
		order = append(order, s.OrderIndex)
	}
	assert.Equal(t, []int{0, 1, 2}, order)

	_, err = c.ResolvePresentation(context.Background(), 6)
	assert.True(t, models.IsContentError(err))
}

func TestClientListings(t *testing.T) {
	srv := newContentServer(t, map[string]any{
		"/api/bible/versions":          []models.BibleVersion{{ID: 1, Abbreviation: "KJV", Name: "King James"}},
		"/api/bible/versions/1/books":  []models.BibleBook{{ID: 10, VersionID: 1, Name: "Genesis", Order: 1}},
		"/api/bible/books/10/chapters": []models.BibleChapter{{ID: 100, BookID: 10, Number: 1}},
		"/api/bible/chapters/100":      genesisOne(),
	})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	versions, err := c.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KJV", versions[0].Abbreviation)

	books, err := c.ListBooks(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Genesis", books[0].Name)

	chapters, err := c.ListChapters(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, chapters[0].Number)

	_, err = c.ListBooks(ctx, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestClientChapterIDs(t *testing.T) {
	srv := newContentServer(t, map[string]any{
		"/api/bible/versions": []models.BibleVersion{
			{ID: 1, Abbreviation: "KJV", Name: "King James"},
			{ID: 2, Abbreviation: "ARA", Name: "Almeida Revista e Atualizada"},
		},
		"/api/bible/versions/2/books": []models.BibleBook{
			{ID: 20, VersionID: 2, Name: "Gênesis", Order: 1},
			{ID: 21, VersionID: 2, Name: "Êxodo", Order: 2},
		},
		"/api/bible/books/20/chapters": []models.BibleChapter{{ID: 200, BookID: 20, Number: 1}, {ID: 201, BookID: 20, Number: 2}},
		"/api/bible/books/21/chapters": []models.BibleChapter{{ID: 250, BookID: 21, Number: 1}},
	})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	ids, err := c.ChapterIDs(ctx, "ara")
	require.NoError(t, err)
	assert.Equal(t, []int64{200, 201, 250}, ids)

	_, err = c.ChapterIDs(ctx, "NVI")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = c.ChapterIDs(ctx, "KJV")
	assert.ErrorIs(t, err, models.ErrNotFound, "books of version 1 are not served")
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("ftp://example.org")
	assert.Error(t, err)
}

type fakeSource struct {
	chapters      map[int64]*models.Chapter
	presentations map[int64]*models.Presentation
}

func (f *fakeSource) GetChapter(_ context.Context, id int64) (*models.Chapter, error) {
	if ch, ok := f.chapters[id]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("chapter %d: %w", id, models.ErrNotFound)
}

func (f *fakeSource) GetPresentation(_ context.Context, id int64) (*models.Presentation, error) {
	if p, ok := f.presentations[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("presentation %d: %w", id, models.ErrNotFound)
}

func TestStoreResolver(t *testing.T) {
	src := &fakeSource{
		chapters: map[int64]*models.Chapter{100: genesisOne(), 101: {ID: 101}},
		presentations: map[int64]*models.Presentation{
			5: {ID: 5, Slides: []models.Slide{{OrderIndex: 1, MediaURL: "/b"}, {OrderIndex: 0, MediaURL: "/a"}}},
			6: {ID: 6, Slides: []models.Slide{{OrderIndex: 0, MediaURL: "/a"}, {OrderIndex: 0, MediaURL: "/b"}}},
		},
	}
	r := NewStoreResolver(src, nil)
	ctx := context.Background()

	ch, err := r.ResolveChapter(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ChapterNumber)

	_, err = r.ResolveChapter(ctx, 101)
	assert.True(t, models.IsContentError(err), "empty chapter is malformed")

	_, err = r.ResolveChapter(ctx, 7)
	assert.ErrorIs(t, err, models.ErrNotFound)

	p, err := r.ResolvePresentation(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "/a", p.Slides[0].MediaURL)
	assert.Equal(t, 1, src.presentations[5].Slides[0].OrderIndex, "source slice untouched")
	assert.NotSame(t, src.presentations[5], p)

	_, err = r.ResolvePresentation(ctx, 6)
	assert.True(t, models.IsContentError(err))
}
