package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// Close codes on the notification socket
const (
	CloseUnauthorized = 4401 // auth message missing, late or invalid
	CloseSlowConsumer = 4408 // bounded send queue overflowed
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the fronting proxy
	},
}

// clientMessage is anything a client sends after connecting
type clientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}

// WebSocketHandler is the connection side of the notification fabric.
// Sessions authenticate with their first message, then receive a snapshot
// followed by live events for every topic they join. Slow consumers are
// dropped rather than ever blocking a publisher.
type WebSocketHandler struct {
	events interfaces.EventService
	auth   interfaces.AuthVerifier
	config *common.WebSocketConfig
	logger arbor.ILogger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewWebSocketHandler(events interfaces.EventService, auth interfaces.AuthVerifier,
	config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		events:   events,
		auth:     auth,
		config:   config,
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

type session struct {
	conn   *websocket.Conn
	send   chan models.ProgressEvent
	userID string

	mu     sync.Mutex
	unsubs map[string]func()
	once   sync.Once
	done   chan struct{}
}

// HandleWebSocket upgrades the connection and runs the session lifecycle
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	userID, err := h.authenticate(r, conn)
	if err != nil {
		h.closeWith(conn, CloseUnauthorized, "UNAUTHORIZED")
		return
	}

	s := &session{
		conn:   conn,
		send:   make(chan models.ProgressEvent, h.sendQueueSize()),
		userID: userID,
		unsubs: make(map[string]func()),
		done:   make(chan struct{}),
	}
	h.register(s)
	h.logger.Debug().Str("user", userID).Msg("Notification session established")

	// Topics named on the URL are joined immediately
	for _, topic := range r.URL.Query()["topic"] {
		h.join(s, topic)
	}

	go h.writePump(s)
	h.readPump(s)
}

// authenticate reads the first message under the auth deadline. Tokens
// arrive in the message body, never in the URL.
func (h *WebSocketHandler) authenticate(r *http.Request, conn *websocket.Conn) (string, error) {
	deadline := common.Duration(h.config.AuthDeadline, 10*time.Second)
	if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return "", err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("no auth message before deadline: %w", err)
	}
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		return "", fmt.Errorf("first message must be an auth message")
	}
	userID, err := h.auth.VerifyToken(r.Context(), msg.Token)
	if err != nil {
		return "", fmt.Errorf("token rejected: %w", err)
	}
	return userID, nil
}

// join subscribes the session to a topic, snapshot first so a late joiner
// can resync before live delivery.
func (h *WebSocketHandler) join(s *session, topic string) {
	s.mu.Lock()
	if _, already := s.unsubs[topic]; already {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if snapshot, ok := h.events.Snapshot(topic); ok {
		h.deliver(s, snapshot)
	}
	unsub := h.events.Subscribe(topic, func(event models.ProgressEvent) {
		h.deliver(s, event)
	})
	s.mu.Lock()
	s.unsubs[topic] = unsub
	s.mu.Unlock()
}

func (h *WebSocketHandler) leave(s *session, topic string) {
	s.mu.Lock()
	unsub, ok := s.unsubs[topic]
	delete(s.unsubs, topic)
	s.mu.Unlock()
	if ok {
		unsub()
	}
}

// deliver enqueues without ever blocking the publisher; an overflowing
// session is dropped and expected to reconnect and resync.
func (h *WebSocketHandler) deliver(s *session, event models.ProgressEvent) {
	select {
	case s.send <- event:
	case <-s.done:
	default:
		h.logger.Warn().Str("user", s.userID).Str("topic", event.Topic).Msg("Send queue overflow, dropping session")
		go h.drop(s, CloseSlowConsumer, "SLOW_CONSUMER")
	}
}

func (h *WebSocketHandler) writePump(s *session) {
	pingInterval := time.Duration(h.config.PingIntervalSeconds) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	sendTimeout := common.Duration(h.config.SendTimeout, 5*time.Second)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case event := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := s.conn.WriteJSON(event); err != nil {
				h.drop(s, websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(s, websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

// readPump consumes subscribe/unsubscribe messages and reaps idle sessions
func (h *WebSocketHandler) readPump(s *session) {
	idle := time.Duration(h.config.IdleTimeoutSeconds) * time.Second
	if idle <= 0 {
		idle = 90 * time.Second
	}
	s.conn.SetReadDeadline(time.Now().Add(idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idle))
	})

	defer h.drop(s, websocket.CloseNormalClosure, "")
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(idle))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			if msg.Topic != "" {
				h.join(s, msg.Topic)
			}
		case "unsubscribe":
			if msg.Topic != "" {
				h.leave(s, msg.Topic)
			}
		}
	}
}

func (h *WebSocketHandler) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// drop tears the session down exactly once
func (h *WebSocketHandler) drop(s *session, code int, reason string) {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		unsubs := make([]func(), 0, len(s.unsubs))
		for _, unsub := range s.unsubs {
			unsubs = append(unsubs, unsub)
		}
		s.unsubs = make(map[string]func())
		s.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}

		h.mu.Lock()
		delete(h.sessions, s)
		h.mu.Unlock()

		h.closeWith(s.conn, code, reason)
	})
}

func (h *WebSocketHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// SessionCount reports live sessions, for the status endpoint
func (h *WebSocketHandler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *WebSocketHandler) sendQueueSize() int {
	if h.config.SendQueueSize > 0 {
		return h.config.SendQueueSize
	}
	return 64
}
