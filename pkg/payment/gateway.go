package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the settlement state reported by a gateway.
type SessionStatus string

const (
	StatusPaid   SessionStatus = "paid"
	StatusUnpaid SessionStatus = "unpaid"
)

// ErrSessionNotFound is returned when a gateway does not know a session id.
var ErrSessionNotFound = errors.New("payment session not found")

// SessionRequest describes a hosted checkout to open.
type SessionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// Session is the gateway's handle on a hosted checkout.
type Session struct {
	ID  string
	URL string
}

// Gateway defines the interface for payment providers.
type Gateway interface {
	// CreateSession opens a hosted checkout session for a single line item.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// SessionStatus reports whether the session's funds were captured.
	SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
}

// MockGateway is an in-memory gateway for development and tests. Sessions
// stay unpaid until MarkPaid is called.
type MockGateway struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]SessionStatus
}

func NewMockGateway(baseURL string) *MockGateway {
	if baseURL == "" {
		baseURL = "https://example.com/pay"
	}
	return &MockGateway{baseURL: baseURL, sessions: make(map[string]SessionStatus)}
}

func (g *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.New("amount must be positive")
	}
	id := "cs_mock_" + uuid.New().String()

	g.mu.Lock()
	g.sessions[id] = StatusUnpaid
	g.mu.Unlock()

	return &Session{ID: id, URL: g.baseURL + "?session_id=" + id}, nil
}

func (g *MockGateway) SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return status, nil
}

// MarkPaid simulates the customer completing checkout.
func (g *MockGateway) MarkPaid(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	g.sessions[sessionID] = StatusPaid
	return nil
}
