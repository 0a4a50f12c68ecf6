package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"worshiplive/internal/httputil"
	"worshiplive/internal/metrics"
	"worshiplive/internal/models"
)

// Client reads content from a worshiplive server's read API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

type ClientOption func(*Client)

func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithClientMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if err := httputil.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httputil.NewClient(httputil.DefaultTimeout),
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// statusError is a non-2xx response; 404 unwraps to models.ErrNotFound.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.status, e.body)
}

func (e *statusError) Unwrap() error {
	if e.status == http.StatusNotFound {
		return models.ErrNotFound
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	body, err := httputil.ReadBody(resp, httputil.MaxResponseBody)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if !httputil.IsSuccess(resp) {
		return &statusError{status: resp.StatusCode, body: httputil.Truncate(body, 200)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (c *Client) ResolveChapter(ctx context.Context, chapterID int64) (*models.Chapter, error) {
	var ch models.Chapter
	if err := c.get(ctx, "/api/bible/chapters/"+id(chapterID), &ch); err != nil {
		c.metrics.IncContentError(ResourceChapter)
		return nil, models.NewContentError(ResourceChapter, chapterID, err)
	}
	if err := checkChapter(chapterID, &ch); err != nil {
		c.metrics.IncContentError(ResourceChapter)
		return nil, err
	}
	return &ch, nil
}

func (c *Client) ResolvePresentation(ctx context.Context, presentationID int64) (*models.Presentation, error) {
	var p models.Presentation
	if err := c.get(ctx, "/api/presentations/"+id(presentationID), &p); err != nil {
		c.metrics.IncContentError(ResourcePresentation)
		return nil, models.NewContentError(ResourcePresentation, presentationID, err)
	}
	out, err := normalizePresentation(presentationID, &p)
	if err != nil {
		c.metrics.IncContentError(ResourcePresentation)
		return nil, err
	}
	return out, nil
}

func (c *Client) ListVersions(ctx context.Context) ([]models.BibleVersion, error) {
	var out []models.BibleVersion
	if err := c.get(ctx, "/api/bible/versions", &out); err != nil {
		return nil, models.NewContentError("versions", 0, err)
	}
	return out, nil
}

func (c *Client) ListBooks(ctx context.Context, versionID int64) ([]models.BibleBook, error) {
	var out []models.BibleBook
	if err := c.get(ctx, "/api/bible/versions/"+id(versionID)+"/books", &out); err != nil {
		return nil, models.NewContentError("version", versionID, err)
	}
	return out, nil
}

func (c *Client) ListChapters(ctx context.Context, bookID int64) ([]models.BibleChapter, error) {
	var out []models.BibleChapter
	if err := c.get(ctx, "/api/bible/books/"+id(bookID)+"/chapters", &out); err != nil {
		return nil, models.NewContentError("book", bookID, err)
	}
	return out, nil
}

// ChapterIDs lists every chapter of the version with the given
// abbreviation, book by book.
func (c *Client) ChapterIDs(ctx context.Context, abbreviation string) ([]int64, error) {
	versions, err := c.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(versions, func(v models.BibleVersion) bool {
		return strings.EqualFold(v.Abbreviation, abbreviation)
	})
	if idx < 0 {
		return nil, fmt.Errorf("bible version %q: %w", abbreviation, models.ErrNotFound)
	}
	books, err := c.ListBooks(ctx, versions[idx].ID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, b := range books {
		chapters, err := c.ListChapters(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		for _, ch := range chapters {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}
