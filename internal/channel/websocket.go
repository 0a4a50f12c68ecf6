package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/models"
)

const (
	pingInterval = 10 * time.Second
	pongWait     = 30 * time.Second
	writeWait    = 5 * time.Second
)

// WebSocketTransport connects to a hub's /ws/topics/{topic} endpoint.
type WebSocketTransport struct {
	BaseURL string
	Header  http.Header
	Dialer  *websocket.Dialer
}

func (t *WebSocketTransport) topicURL(topic string) (string, error) {
	base := strings.TrimRight(t.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	default:
		return "", fmt.Errorf("unsupported hub url %q", t.BaseURL)
	}
	return base + "/ws/topics/" + url.PathEscape(topic), nil
}

func (t *WebSocketTransport) Connect(ctx context.Context, topic string) (Stream, error) {
	u, err := t.topicURL(topic)
	if err != nil {
		return nil, err
	}
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, t.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", u, err)
	}

	s := &wsStream{
		conn:   conn,
		frames: make(chan *models.Envelope, 16),
		done:   make(chan struct{}),
		log:    logging.Component("channel").With().Str(logging.FieldTopic, topic).Logger(),
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

type wsStream struct {
	conn   *websocket.Conn
	frames chan *models.Envelope
	done   chan struct{}
	log    zerolog.Logger

	errMu sync.Mutex
	err   error
	once  sync.Once
}

func (s *wsStream) readLoop() {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Name == "" {
			s.log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping malformed frame")
			continue
		}
		select {
		case s.frames <- &env:
		case <-s.done:
			return
		}
	}
}

func (s *wsStream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *wsStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *wsStream) Recv(ctx context.Context) (*models.Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case env, ok := <-s.frames:
		if !ok {
			s.errMu.Lock()
			defer s.errMu.Unlock()
			if s.err == nil {
				return nil, errors.New("stream closed")
			}
			return nil, s.err
		}
		return env, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}
