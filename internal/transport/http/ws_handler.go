package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maluki2001/LearnKick2-sub002/internal/app"
	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
	"github.com/maluki2001/LearnKick2-sub002/internal/game"
)

// WSHandler owns all live WebSocket connections. It doubles as the service's
// Notifier so queue events reach players who are not in a session yet.
type WSHandler struct {
	service  *app.Service
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wsClient
}

func NewWSHandler(service *app.Service, log *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int     `json:"questionIndex"`
	Value         float64 `json:"value"`
	ElapsedMs     int     `json:"elapsedMs"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsClient is one player connection. The send channel is drained by a single
// writer goroutine so conn writes never race.
type wsClient struct {
	playerID string
	send     chan outboundMessage[any]
	closed   chan struct{}
	once     sync.Once

	forwardMu     sync.Mutex
	forwardCancel func()
}

func (c *wsClient) shutdown() {
	c.once.Do(func() { close(c.closed) })
	c.forwardMu.Lock()
	if c.forwardCancel != nil {
		c.forwardCancel()
		c.forwardCancel = nil
	}
	c.forwardMu.Unlock()
}

// enqueue drops the message when the buffer is full rather than blocking the
// session actor or the notifier.
func (c *wsClient) enqueue(msg outboundMessage[any]) {
	select {
	case <-c.closed:
	case c.send <- msg:
	default:
	}
}

func (c *wsClient) setForwardCancel(cancel func()) {
	c.forwardMu.Lock()
	if c.forwardCancel != nil {
		c.forwardCancel()
	}
	c.forwardCancel = cancel
	c.forwardMu.Unlock()
}

// ServeWS upgrades the request and runs the connection's read loop. One
// connection per player id; a newer connection supersedes the old one.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := &wsClient{
		playerID: playerID,
		send:     make(chan outboundMessage[any], 32),
		closed:   make(chan struct{}),
	}
	h.register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Debug("ws write error", "player", playerID, "err", err)
					c.shutdown()
					return
				}
			case <-c.closed:
				return
			}
		}
	}()

	// A returning player can resume a live session straight away.
	if snap, sess, err := h.service.Reconnect(playerID); err == nil {
		h.attach(c, sess)
		c.enqueue(outboundMessage[any]{Type: "reconnected", Payload: snap})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleMessage(r, c, inbound)
	}

	c.shutdown()
	if h.unregister(c) {
		h.service.Disconnect(playerID)
	}
	<-writerDone
}

func (h *WSHandler) handleMessage(r *http.Request, c *wsClient, inbound inboundMessage) {
	switch inbound.Type {
	case "find_match":
		var req app.JoinRequest
		if err := json.Unmarshal(inbound.Payload, &req); err != nil {
			c.enqueue(errorMessage("invalid find_match payload"))
			return
		}
		req.PlayerID = c.playerID
		if _, err := h.service.JoinQueue(r.Context(), req); err != nil {
			c.enqueue(errorMessage(err.Error()))
			return
		}
		c.enqueue(outboundMessage[any]{Type: "queued", Payload: map[string]string{"playerId": c.playerID}})

	case "cancel_matchmaking":
		h.service.LeaveQueue(c.playerID)
		c.enqueue(outboundMessage[any]{Type: "matchmaking_cancelled", Payload: map[string]string{"playerId": c.playerID}})

	case "ready":
		if err := h.service.Ready(c.playerID); err != nil {
			c.enqueue(errorMessage(err.Error()))
		}

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			c.enqueue(errorMessage("invalid answer payload"))
			return
		}
		_, err := h.service.Answer(domain.AnswerSubmission{
			PlayerID:      c.playerID,
			QuestionIndex: payload.QuestionIndex,
			Value:         payload.Value,
			ElapsedMs:     payload.ElapsedMs,
		})
		if err != nil {
			c.enqueue(errorMessage(err.Error()))
		}

	case "reconnect":
		snap, sess, err := h.service.Reconnect(c.playerID)
		if err != nil {
			c.enqueue(errorMessage("no active match"))
			return
		}
		h.attach(c, sess)
		c.enqueue(outboundMessage[any]{Type: "reconnected", Payload: snap})

	default:
		c.enqueue(errorMessage("unsupported message type"))
	}
}

// MatchFound implements app.Notifier. It delivers the pairing and hooks the
// client into the new session's event feed.
func (h *WSHandler) MatchFound(playerID string, info app.MatchInfo) {
	c := h.client(playerID)
	if c == nil {
		return
	}
	c.enqueue(outboundMessage[any]{Type: "match_found", Payload: info})
	if sess, err := h.service.Session(info.MatchID); err == nil {
		h.attach(c, sess)
	}
}

// QueueTimeout implements app.Notifier.
func (h *WSHandler) QueueTimeout(playerID string) {
	if c := h.client(playerID); c != nil {
		c.enqueue(outboundMessage[any]{Type: "queue_timeout", Payload: errorPayload{Message: domain.ErrQueueTimeout.Error()}})
	}
}

// attach forwards session events to the client until the session ends or the
// connection closes.
func (h *WSHandler) attach(c *wsClient, sess *game.Session) {
	events, cancel := sess.Subscribe()
	c.setForwardCancel(cancel)
	go func() {
		defer cancel()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if msg, deliver := eventMessage(c.playerID, e); deliver {
					c.enqueue(msg)
				}
				switch e.(type) {
				case game.GameEndEvent, game.GameAbandonedEvent:
					return
				}
			case <-c.closed:
				return
			}
		}
	}()
}

// eventMessage converts a session event into the wire message for one
// recipient. Answer results go to the answerer only; the opposite side gets
// opponent_answered instead.
func eventMessage(playerID string, e game.Event) (outboundMessage[any], bool) {
	switch ev := e.(type) {
	case game.OpponentAnsweredEvent:
		if ev.PlayerID == playerID {
			return outboundMessage[any]{}, false
		}
	case game.AnswerResultEvent:
		if ev.Outcome.PlayerID != playerID {
			return outboundMessage[any]{}, false
		}
	case game.OpponentDisconnectedEvent:
		if ev.PlayerID == playerID {
			return outboundMessage[any]{}, false
		}
	case game.OpponentReconnectedEvent:
		if ev.PlayerID == playerID {
			return outboundMessage[any]{}, false
		}
	}
	return outboundMessage[any]{Type: e.Name(), Payload: e}, true
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func (h *WSHandler) register(c *wsClient) {
	h.mu.Lock()
	if old, ok := h.clients[c.playerID]; ok {
		old.shutdown()
	}
	h.clients[c.playerID] = c
	h.mu.Unlock()
}

// unregister removes c if it is still the registered connection for its
// player. Reports whether it was: a superseded connection's teardown must
// not disconnect a player who is live on a newer socket.
func (h *WSHandler) unregister(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.playerID] == c {
		delete(h.clients, c.playerID)
		return true
	}
	return false
}

func (h *WSHandler) client(playerID string) *wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[playerID]
}
