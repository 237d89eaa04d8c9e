package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/logger"
	"github.com/isdelr/account-service/internal/services"
	"github.com/rs/zerolog"
)

// statusEnvelope is the body shape of the register and login endpoints.
type statusEnvelope struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	User   interface{} `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

// statusFor maps every service error kind to an HTTP status.
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindInvalidCredentials:
		return http.StatusUnauthorized
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// textFor is the plain-text body sent by the record endpoints for err.
func textFor(err error) string {
	switch kind := services.KindOf(err); kind {
	case services.KindUnauthenticated:
		return "Unauthorized"
	case services.KindForbidden:
		if errors.Is(err, auth.ErrInvalidToken) {
			return "Forbidden"
		}
		return "You are not allowed to update other users"
	case services.KindNotFound:
		return "User not found"
	case services.KindConflict:
		return "Duplicate email"
	case services.KindInvalidCredentials:
		return "Invalid Login"
	case services.KindInvalidInput:
		return "Invalid request body"
	default:
		return "Internal Server Error"
	}
}

// writeError sends the status and text body for err.
func writeError(w http.ResponseWriter, err error) {
	writeText(w, statusFor(services.KindOf(err)), textFor(err))
}

func requestLogger(r *http.Request) zerolog.Logger {
	return logger.WithRequestID(middleware.GetReqID(r.Context()))
}

// logFailure logs internal errors loudly and expected client errors quietly.
func logFailure(r *http.Request, err error) *zerolog.Event {
	l := requestLogger(r)
	if services.KindOf(err) == services.KindInternal {
		return l.Error().Err(err)
	}
	return l.Debug().Err(err)
}
