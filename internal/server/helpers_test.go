package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"worshiplive/internal/auth"
	"worshiplive/internal/channel"
	"worshiplive/internal/content"
	"worshiplive/internal/control"
	"worshiplive/internal/hub"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
	"worshiplive/internal/preloader"
	"worshiplive/internal/store"
	"worshiplive/internal/surfaces"
)

type memFetcher struct{}

func (memFetcher) Fetch(_ context.Context, mediaURL string) (preloader.Asset, error) {
	return preloader.Asset{ContentType: "image/png", Data: []byte("png:" + mediaURL)}, nil
}

type fixture struct {
	srv     *Server
	store   *store.Store
	hub     *hub.Hub
	cookie  *http.Cookie
	chapter *models.Chapter
	hymn    *models.Hymn
	deck    *models.Presentation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(filepath.Join(filepath.Dir(file), "..", "..", "migrations")))

	v, err := st.CreateBibleVersion("KJV", "King James Version")
	require.NoError(t, err)
	book, err := st.CreateBibleBook(v.ID, "Psalms", 19)
	require.NoError(t, err)
	ch, err := st.CreateChapter(book.ID, 23, []string{"The Lord is my shepherd", "He maketh me", "He restoreth"})
	require.NoError(t, err)
	ch.VersionID = v.ID
	hymn := &models.Hymn{Title: "Holy, Holy, Holy", Chorus: "Holy", Verses: []models.HymnVerse{{Number: 1, Text: "Early in the morning"}}}
	require.NoError(t, st.CreateHymn(hymn))
	deck, err := st.CreatePresentation("Welcome", []string{"/slides/a.png", "/slides/b.png"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := metrics.New()
	h := hub.New(hub.WithMetrics(m))
	channels := channel.NewManager(ctx, h, channel.WithBackoff(channel.Backoff{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond}))
	t.Cleanup(channels.Close)
	sm := surfaces.New(ctx, channels, content.NewStoreResolver(st, m), memFetcher{}, surfaces.WithMetrics(m))
	t.Cleanup(sm.Close)

	mgr := auth.NewManager(st, time.Hour)
	op, err := st.CreateOperator("deacon", "")
	require.NoError(t, err)
	token, err := st.CreateSession(context.Background(), op.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	srv := NewServer(st,
		WithAuth(mgr),
		WithControl(control.New(st, h)),
		WithSurfaces(sm),
		WithHub(h),
		WithMetrics(m),
	)
	t.Cleanup(srv.Close)

	return &fixture{
		srv:     srv,
		store:   st,
		hub:     h,
		cookie:  &http.Cookie{Name: auth.CookieName, Value: token},
		chapter: ch,
		hymn:    hymn,
		deck:    deck,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	if authed {
		r.AddCookie(f.cookie)
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)
	return w
}

func (f *fixture) startWorship(t *testing.T) *models.Worship {
	t.Helper()
	w, err := control.New(f.store, f.hub).StartWorship(context.Background(), "Sunday")
	require.NoError(t, err)
	return w
}
