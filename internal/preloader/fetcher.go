package preloader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"worshiplive/internal/httputil"
)

// Asset is one slide's media held in memory for the frame endpoint.
type Asset struct {
	ContentType string
	Data        []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, mediaURL string) (Asset, error)
}

// HTTPFetcher downloads slide media. Relative media URLs resolve against
// BaseURL.
type HTTPFetcher struct {
	base *url.URL
	http *http.Client
}

func NewHTTPFetcher(baseURL string) (*HTTPFetcher, error) {
	f := &HTTPFetcher{http: httputil.NewClient(httputil.MediaTimeout)}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing media base url: %w", err)
		}
		f.base = u
	}
	return f, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, mediaURL string) (Asset, error) {
	u, err := httputil.ResolveURL(f.base, mediaURL)
	if err != nil {
		return Asset{}, fmt.Errorf("media url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	if !httputil.IsSuccess(resp) {
		return Asset{}, fmt.Errorf("media %s returned status %d", u, resp.StatusCode)
	}
	data, err := httputil.ReadBody(resp, httputil.MaxMediaBody)
	if err != nil {
		return Asset{}, fmt.Errorf("reading media %s: %w", u, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Asset{ContentType: ct, Data: data}, nil
}
