package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/internal/notification"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// TokenVerifier validates the JWT passed as a query parameter.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

type message struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(m message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(m)
}

// Hub keeps the open notification sockets of every user and implements
// notification.Notifier by pushing to them.
type Hub struct {
	auth   TokenVerifier
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(auth TokenVerifier, logger *slog.Logger) *Hub {
	return &Hub{auth: auth, logger: logger, clients: make(map[string]map[*client]struct{})}
}

// Notify pushes message to every socket the user has open. It returns
// notification.ErrNoChannel when the user has none.
func (h *Hub) Notify(ctx context.Context, userID, msg string) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return notification.ErrNoChannel
	}

	m := message{Message: msg, SentAt: time.Now().UTC()}
	var delivered int
	for _, c := range targets {
		if err := c.send(m); err != nil {
			h.logger.Debug("websocket push failed", "user_id", userID, "error", err)
			h.remove(userID, c)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("websocket push to user %s failed: %w", userID, notification.ErrNoChannel)
	}
	return nil
}

// Handle upgrades HTTP to WebSocket and subscribes the caller to their
// notifications.
// URL: /ws/notifications?token=JWT_TOKEN
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.add(claims.Sub, c)
	defer h.remove(claims.Sub, c)

	h.logger.Info("notification socket connected", "user_id", claims.Sub)

	// The socket is push-only; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("notification socket closed", "user_id", claims.Sub, "error", err)
			}
			return
		}
	}
}

// Connected reports how many sockets a user has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) add(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) remove(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], c)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}
