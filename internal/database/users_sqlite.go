package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/account-service/internal/models"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type userRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    parseTime(r.CreatedAt),
	}
}

const userColumns = "id, name, email, password_hash, created_at"

// UserStore is the SQLite-backed user directory.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore creates a UserStore over an open, migrated database.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user, assigning its ID and creation time.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.PasswordHash, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID retrieves a single user by their ID.
func (s *UserStore) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.findOne(ctx, s.db, "id", id)
}

// FindByEmail retrieves a single user by their email, including the password hash.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, s.db, "email", email)
}

// List returns every user in insertion order.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+userColumns+" FROM users ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

// Update applies the non-nil fields of upd and returns the updated record.
func (s *UserStore) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	var (
		sets []string
		args []interface{}
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	if len(sets) > 0 {
		args = append(args, id)
		res, err := tx.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			if isUniqueViolation(err) {
				return models.User{}, ErrDuplicate
			}
			return models.User{}, fmt.Errorf("update user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return models.User{}, err
		}
		if n == 0 {
			return models.User{}, ErrNotFound
		}
	}

	user, err := s.findOne(ctx, tx, "id", id)
	if err != nil {
		return models.User{}, err
	}
	return user, tx.Commit()
}

// Delete removes a user and returns the record as it was before removal.
func (s *UserStore) Delete(ctx context.Context, id string) (models.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	user, err := s.findOne(ctx, tx, "id", id)
	if err != nil {
		return models.User{}, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return models.User{}, fmt.Errorf("delete user: %w", err)
	}
	return user, tx.Commit()
}

// Ping checks the database connection.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *UserStore) findOne(ctx context.Context, q sqlx.QueryerContext, column, value string) (models.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user by %s: %w", column, err)
	}
	return row.toModel(), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
