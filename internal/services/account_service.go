package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/account-service/internal/auth"
	"github.com/isdelr/account-service/internal/database"
	"github.com/isdelr/account-service/internal/metrics"
	"github.com/isdelr/account-service/internal/models"
)

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (string, error)
	ListAll(ctx context.Context, token string) ([]models.User, error)
	GetByID(ctx context.Context, token, id string) (models.User, error)
	Update(ctx context.Context, token, id string, upd models.UserUpdate) (models.User, error)
	Delete(ctx context.Context, token, id string) (models.User, error)
	Authenticate(token string, aud auth.Audience) (*auth.Claims, error)
	Ping(ctx context.Context) error
}

// UserDirectory stores user records. Implementations return database.ErrNotFound
// and database.ErrDuplicate for missing records and unique key violations.
type UserDirectory interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)
	Delete(ctx context.Context, id string) (models.User, error)
	Ping(ctx context.Context) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, secret string) bool
}

// TokenManager issues and verifies audience-bound tokens.
type TokenManager interface {
	Issue(name, email string, aud auth.Audience) (string, error)
	Verify(token string, aud auth.Audience) (*auth.Claims, error)
}

// AccountService provides registration, login and token-gated access to user records.
type AccountService struct {
	users  UserDirectory
	hasher PasswordHasher
	tokens TokenManager
	events EventServiceProvider
}

// NewAccountService creates a new AccountService. events may be nil.
func NewAccountService(users UserDirectory, hasher PasswordHasher, tokens TokenManager, events EventServiceProvider) *AccountService {
	return &AccountService{users: users, hasher: hasher, tokens: tokens, events: events}
}

// Register creates a new account with a hashed password.
func (s *AccountService) Register(ctx context.Context, name, email, password string) error {
	if name == "" || email == "" {
		metrics.RecordRegistration("invalid")
		return newError(KindInvalidInput, "name and email are required", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		metrics.RecordRegistration("error")
		return newError(KindInternal, "failed to hash password", err)
	}

	user := models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			metrics.RecordRegistration("conflict")
			return newError(KindConflict, "duplicate email", err)
		}
		metrics.RecordRegistration("error")
		return newError(KindInternal, "failed to create user", err)
	}

	metrics.RecordRegistration("ok")
	s.record(ctx, "user.register", "info", fmt.Sprintf("User '%s' registered.", user.Email), &user.ID)
	return nil
}

// Login checks credentials and returns a user-audience token carrying name and email.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.RecordLogin("invalid")
			s.record(ctx, "user.login.fail", "warn", fmt.Sprintf("Login attempt for unknown email '%s'.", email), nil)
			return "", newError(KindInvalidCredentials, "invalid login", ErrUnknownEmail)
		}
		metrics.RecordLogin("error")
		return "", newError(KindInternal, "failed to look up user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		metrics.RecordLogin("invalid")
		s.record(ctx, "user.login.fail", "warn", fmt.Sprintf("Wrong password for '%s'.", email), &user.ID)
		return "", newError(KindInvalidCredentials, "invalid login", ErrPasswordMismatch)
	}

	token, err := s.tokens.Issue(user.Name, user.Email, auth.AudienceUser)
	if err != nil {
		metrics.RecordLogin("error")
		return "", newError(KindInternal, "failed to issue token", err)
	}

	metrics.RecordLogin("ok")
	s.record(ctx, "user.login", "info", fmt.Sprintf("User '%s' logged in.", user.Email), &user.ID)
	return token, nil
}

// ListAll returns every user. Requires an admin-audience token.
func (s *AccountService) ListAll(ctx context.Context, token string) ([]models.User, error) {
	if _, err := s.Authenticate(token, auth.AudienceAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, newError(KindInternal, "failed to list users", err)
	}
	return users, nil
}

// GetByID returns a single user. Any valid user-audience token may read any record.
func (s *AccountService) GetByID(ctx context.Context, token, id string) (models.User, error) {
	if _, err := s.Authenticate(token, auth.AudienceUser); err != nil {
		return models.User{}, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return models.User{}, directoryError(err, "failed to load user")
	}
	return user, nil
}

// Update applies upd to the user with the given id. The token's email must equal upd.Email;
// ownership is checked against the request, not the stored record.
func (s *AccountService) Update(ctx context.Context, token, id string, upd models.UserUpdate) (models.User, error) {
	claims, err := s.Authenticate(token, auth.AudienceUser)
	if err != nil {
		return models.User{}, err
	}
	if upd.Email == nil || *upd.Email != claims.Email {
		return models.User{}, newError(KindForbidden, "not allowed to update other users", nil)
	}

	if upd.Password != nil {
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return models.User{}, newError(KindInternal, "failed to hash password", err)
		}
		upd.PasswordHash = &hash
		upd.Password = nil
	}

	user, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return models.User{}, directoryError(err, "failed to update user")
	}

	s.record(ctx, "user.update", "info", fmt.Sprintf("User '%s' updated by '%s'.", user.ID, claims.Email), &user.ID)
	return user, nil
}

// Delete permanently removes a user and returns the removed record.
// Any valid user-audience token may delete any record.
func (s *AccountService) Delete(ctx context.Context, token, id string) (models.User, error) {
	claims, err := s.Authenticate(token, auth.AudienceUser)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.Delete(ctx, id)
	if err != nil {
		return models.User{}, directoryError(err, "failed to delete user")
	}

	s.record(ctx, "user.delete", "warn", fmt.Sprintf("User '%s' deleted by '%s'.", user.Email, claims.Email), &user.ID)
	return user, nil
}

// Authenticate verifies token for aud and translates token failures into service errors.
func (s *AccountService) Authenticate(token string, aud auth.Audience) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token, aud)
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrMalformedToken) {
			return nil, newError(KindUnauthenticated, "unauthenticated", err)
		}
		return nil, newError(KindForbidden, "forbidden", err)
	}
	return claims, nil
}

// Ping checks that the user directory is reachable.
func (s *AccountService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func (s *AccountService) record(ctx context.Context, eventType, level, message string, userID *string) {
	if s.events == nil {
		return
	}
	s.events.CreateEvent(ctx, eventType, level, message, userID)
}

func directoryError(err error, msg string) *Error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return newError(KindNotFound, "user not found", err)
	case errors.Is(err, database.ErrDuplicate):
		return newError(KindConflict, "duplicate email", err)
	default:
		return newError(KindInternal, msg, err)
	}
}
