// Package notifier tells pastoral staff about new prayer requests over
// Discord, a generic webhook or ntfy.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"worshiplive/internal/httputil"
	"worshiplive/internal/models"
)

type ChannelType string

const (
	ChannelDiscord ChannelType = "discord"
	ChannelWebhook ChannelType = "webhook"
	ChannelNtfy    ChannelType = "ntfy"
)

// Channel is one configured destination. For ntfy the URL includes the topic.
type Channel struct {
	Type  ChannelType
	URL   string
	Token string
}

func (c Channel) Validate() error {
	switch c.Type {
	case ChannelDiscord, ChannelWebhook, ChannelNtfy:
	default:
		return fmt.Errorf("unknown channel type: %s", c.Type)
	}
	return httputil.ValidateBaseURL(c.URL)
}

type Notifier struct {
	client   *http.Client
	channels []Channel
}

func New(channels ...Channel) (*Notifier, error) {
	for _, ch := range channels {
		if err := ch.Validate(); err != nil {
			return nil, fmt.Errorf("%s channel: %w", ch.Type, err)
		}
	}
	return &Notifier{
		client:   httputil.NewClient(httputil.MediaTimeout),
		channels: channels,
	}, nil
}

// FromURLs builds a notifier from the configured endpoints; empty ones are skipped.
func FromURLs(discord, webhook, ntfy string) (*Notifier, error) {
	var chans []Channel
	if discord != "" {
		chans = append(chans, Channel{Type: ChannelDiscord, URL: discord})
	}
	if webhook != "" {
		chans = append(chans, Channel{Type: ChannelWebhook, URL: webhook})
	}
	if ntfy != "" {
		chans = append(chans, Channel{Type: ChannelNtfy, URL: ntfy})
	}
	return New(chans...)
}

func (n *Notifier) Enabled() bool {
	return n != nil && len(n.channels) > 0
}

func (n *Notifier) NotifyPrayerRequest(ctx context.Context, w *models.Worship, p *models.PrayerRequest) error {
	if !n.Enabled() {
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []string

	for _, ch := range n.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()

			var err error
			switch ch.Type {
			case ChannelDiscord:
				err = n.sendDiscord(ctx, ch, w, p)
			case ChannelWebhook:
				err = n.sendWebhook(ctx, ch, w, p)
			case ChannelNtfy:
				err = n.sendNtfy(ctx, ch, w, p)
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Type, err))
				mu.Unlock()
			}
		}(ch)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func requester(p *models.PrayerRequest) string {
	if strings.TrimSpace(p.Name) == "" {
		return "Anonymous"
	}
	return p.Name
}

func (n *Notifier) sendDiscord(ctx context.Context, ch Channel, w *models.Worship, p *models.PrayerRequest) error {
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       "Prayer request: " + w.Title,
				"description": p.Request,
				"color":       0x6A5ACD,
				"fields": []map[string]any{
					{"name": "From", "value": requester(p), "inline": true},
				},
				"timestamp": p.CreatedAt.Format(time.RFC3339),
				"footer": map[string]string{
					"text": "worshiplive",
				},
			},
		},
	}
	return n.postJSON(ctx, ch, payload)
}

func (n *Notifier) sendWebhook(ctx context.Context, ch Channel, w *models.Worship, p *models.PrayerRequest) error {
	payload := map[string]any{
		"event":         "prayer_request",
		"worship_id":    w.ID,
		"worship_title": w.Title,
		"request_id":    p.ID,
		"name":          p.Name,
		"request":       p.Request,
		"created_at":    p.CreatedAt.Format(time.RFC3339),
	}
	return n.postJSON(ctx, ch, payload)
}

func (n *Notifier) sendNtfy(ctx context.Context, ch Channel, w *models.Worship, p *models.PrayerRequest) error {
	message := fmt.Sprintf("%s\n\nFrom: %s", p.Request, requester(p))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Title", "Prayer request: "+w.Title)
	req.Header.Set("Tags", "pray")
	if ch.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ch.Token)
	}
	return n.do(req, "ntfy")
}

func (n *Notifier) postJSON(ctx context.Context, ch Channel, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ch.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ch.Token)
	}
	return n.do(req, string(ch.Type))
}

func (n *Notifier) do(req *http.Request, name string) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer httputil.DrainBody(resp)

	if !httputil.IsSuccess(resp) {
		return fmt.Errorf("%s returned status %d", name, resp.StatusCode)
	}
	return nil
}
