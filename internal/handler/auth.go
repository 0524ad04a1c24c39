package handler

import (
	"net/http"

	"github.com/carsharing/backend/internal/domain"
	"github.com/carsharing/backend/internal/service"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUserByID(r.Context(), principal(r).UserID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, user)
}

// LinkTelegram handles PUT /api/auth/me/telegram.
func (h *AuthHandler) LinkTelegram(w http.ResponseWriter, r *http.Request) {
	var req domain.LinkTelegramRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	user, err := h.auth.LinkTelegram(r.Context(), principal(r).UserID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, user)
}
