package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/glitchsite/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// wsInbound is a message received from a client.
type wsInbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// upgrader builds a WebSocket upgrader that accepts the configured CORS
// origins. "*" accepts any origin.
func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.cfg.Server.CORSOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			if u, err := url.Parse(origin); err == nil {
				return strings.EqualFold(u.Host, r.Host)
			}
			return false
		},
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket and answers quote
// requests on them.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		hub:  s.wsHub,
		send: make(chan WSMessage, 16),
	}
	if !s.wsHub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	log = log.WithField("client_id", client.id)
	log.Debug("websocket client connected")

	// The request context ends when this handler returns.
	remoteAddr := r.RemoteAddr
	go wsWritePump(conn, client, log)
	go s.wsReadPump(conn, client, remoteAddr, log)
}

// wsReadPump reads client messages and answers them until the connection
// fails or the hub drops the client.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient, remoteAddr string, log *logrus.Entry) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
		log.Debug("websocket client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			client.hub.Send(client, WSMessage{Type: MsgError, Error: "invalid message"})
			continue
		}

		if !client.hub.Send(client, s.answer(msg, remoteAddr)) {
			return
		}
	}
}

// answer builds the reply to one client message.
func (s *Server) answer(msg wsInbound, remoteAddr string) WSMessage {
	switch msg.Type {
	case MsgPing:
		return WSMessage{Type: MsgPong}
	case MsgQuote:
		var req QuoteRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				return WSMessage{Type: MsgError, Error: "invalid quote request"}
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
		defer cancel()
		resp, err := s.quote(ctx, remoteAddr, req)
		if err != nil {
			return WSMessage{Type: MsgError, Error: err.Error()}
		}
		return WSMessage{Type: MsgQuote, Data: resp}
	default:
		return WSMessage{Type: MsgError, Error: "unknown message type: " + msg.Type}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func wsWritePump(conn *websocket.Conn, client *WSClient, log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.WithError(err).Error("websocket marshal error")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
