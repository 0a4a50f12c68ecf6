package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"worshiplive/internal/logging"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = 10 * time.Second
	readLimit    = 4096
)

// CheckOrigin decides which browser origins may open a websocket. Nil
// accepts every origin.
type CheckOrigin func(r *http.Request) bool

// ServeWS upgrades the request and streams topic's envelopes to it until
// either side goes away. Frames sent by the client are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string, check CheckOrigin) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return check == nil || check(r)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str(logging.FieldTopic, topic).Msg("websocket upgrade failed")
		return
	}

	m := h.Join(topic)
	go m.readPump(conn)
	m.writePump(conn)
}

// readPump keeps the read deadline moving and notices client disconnects.
func (m *Member) readPump(conn *websocket.Conn) {
	defer m.Leave()
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Member) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		m.Leave()
		conn.Close()
	}()
	for {
		select {
		case env, ok := <-m.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"))
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
