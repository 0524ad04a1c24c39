package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/carsharing/backend/internal/contextkeys"
	"github.com/carsharing/backend/internal/domain"
	"github.com/go-chi/chi/v5"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code >= http.StatusInternalServerError {
			slog.Error("request failed", "kind", appErr.Kind, "error", appErr)
		}
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message})
		return
	}
	slog.Error("unhandled error", "error", err)
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

// principal returns the caller set by the Auth middleware.
func principal(r *http.Request) domain.Principal {
	return contextkeys.Principal(r.Context())
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chiParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrBadRequest("invalid " + name)
	}
	return id, nil
}

// pageRequest reads ?page=&limit= with defaults.
func pageRequest(r *http.Request) domain.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return domain.NewPageRequest(page, limit)
}
