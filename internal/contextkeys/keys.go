// Package contextkeys carries the authenticated principal (user id, email
// and role from the access token) through a request context. The Auth
// middleware stores it; handlers and ManagerOnly read it back.
package contextkeys

import (
	"context"

	"github.com/carsharing/backend/internal/domain"
)

type contextKey string

const (
	UserID    contextKey = "userID"
	UserEmail contextKey = "userEmail"
	UserRole  contextKey = "userRole"
)

// WithClaims stores the token subject, email and role on ctx.
func WithClaims(ctx context.Context, claims *domain.JWTClaims) context.Context {
	ctx = context.WithValue(ctx, UserID, claims.Sub)
	ctx = context.WithValue(ctx, UserEmail, claims.Email)
	return context.WithValue(ctx, UserRole, claims.Role)
}

// Principal returns the caller stored by WithClaims. Anonymous requests get
// the zero Principal.
func Principal(ctx context.Context) domain.Principal {
	id, _ := ctx.Value(UserID).(string)
	role, _ := ctx.Value(UserRole).(string)
	return domain.Principal{UserID: id, Role: role}
}
