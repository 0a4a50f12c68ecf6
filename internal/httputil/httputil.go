// Package httputil holds the outbound HTTP helpers shared by the content
// client, the slide fetcher and the notifier.
package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	MediaTimeout   = 30 * time.Second

	MaxResponseBody = 2 << 20  // JSON from a worshiplive server
	MaxMediaBody    = 16 << 20 // one slide image
)

var ErrBodyTooLarge = errors.New("response body too large")

// NewClient returns a client with the given timeout, DefaultTimeout if zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// DrainBody discards what is left of the body and closes it so the
// connection returns to the pool.
func DrainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBody))
	resp.Body.Close()
}

// ReadBody reads at most max bytes of the body. Bodies longer than max
// return ErrBodyTooLarge.
func ReadBody(resp *http.Response, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, max)
	}
	return data, nil
}

// IsSuccess reports a 2xx status.
func IsSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ValidateBaseURL checks that a URL can serve as the root of a remote
// worshiplive server or notification endpoint.
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must use http or https scheme")
	}
	if u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// ResolveURL makes ref absolute against base. A relative ref with a nil
// base is an error.
func ResolveURL(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if base == nil {
		return "", fmt.Errorf("relative url %q without a base", ref)
	}
	return base.ResolveReference(u).String(), nil
}

// Truncate shortens b to maxRunes runes for log and error messages.
func Truncate(b []byte, maxRunes int) string {
	r := []rune(string(b))
	if len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return string(r)
}
