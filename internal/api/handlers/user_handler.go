package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/models"
	"github.com/isdelr/account-service/internal/services"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.AccountServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.AccountServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// Register handles new user registration.
// Conflicts are reported in the body with a 200 status.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, statusEnvelope{Status: "error", Error: err.Error()})
		return
	}

	err := h.service.Register(r.Context(), payload.Name, payload.Email, *payload.Password)
	if err != nil {
		logFailure(r, err).Str("email", payload.Email).Msg("Failed to register user")
		if services.KindOf(err) == services.KindConflict {
			writeJSON(w, http.StatusOK, statusEnvelope{Status: "error", Error: "Duplicate email"})
			return
		}
		writeJSON(w, statusFor(services.KindOf(err)), statusEnvelope{Status: "error", Error: textFor(err)})
		return
	}

	writeText(w, http.StatusOK, "User Added to the Database")
}

// Login handles user authentication and token generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, statusEnvelope{Status: "error", Error: err.Error()})
		return
	}

	token, err := h.service.Login(r.Context(), payload.Email, *payload.Password)
	if err != nil {
		logFailure(r, err).Str("email", payload.Email).Msg("Failed authentication attempt")
		switch {
		case errors.Is(err, services.ErrUnknownEmail):
			writeJSON(w, http.StatusOK, statusEnvelope{Status: "error", Error: "Invalid Login"})
		case errors.Is(err, services.ErrPasswordMismatch):
			writeJSON(w, http.StatusOK, statusEnvelope{Status: "error", User: false})
		default:
			writeJSON(w, statusFor(services.KindOf(err)), statusEnvelope{Status: "error", Error: "Internal Server Error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, statusEnvelope{Status: "Ok", User: token})
}

// GetAll handles the admin-only listing of every user.
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListAll(r.Context(), auth.BearerToken(r))
	if err != nil {
		logFailure(r, err).Msg("Failed to list users")
		writeError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.GetByID(r.Context(), auth.BearerToken(r), id)
	if err != nil {
		logFailure(r, err).Str("user_id", id).Msg("Failed to get user by ID")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update handles updating a user's profile information.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload UpdatePayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := models.UserUpdate{Name: payload.Name, Email: payload.Email, Password: payload.Password}
	user, err := h.service.Update(r.Context(), auth.BearerToken(r), id, upd)
	if err != nil {
		logFailure(r, err).Str("user_id", id).Msg("Failed to update user")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles the permanent deletion of a user account.
// A missing user is a 404 with an empty body.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.Delete(r.Context(), auth.BearerToken(r), id)
	if err != nil {
		logFailure(r, err).Str("user_id", id).Msg("Failed to delete user")
		if services.KindOf(err) == services.KindNotFound {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
