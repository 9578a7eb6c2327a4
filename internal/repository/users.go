package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail retrieves a user by their email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, username, email, password, avatar, refresh_token, confirmed, created_at
		FROM users WHERE email = ?`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return &user, nil
}

// Create inserts a user whose password is already hashed and sets the generated ID.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, email, password, avatar) VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.Password, user.Avatar)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	user.Id = id
	return nil
}

// UpdateRefreshToken overwrites the stored refresh token. A nil token revokes the session.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, user *model.User, token *string) error {
	query := `UPDATE users SET refresh_token = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, token, user.Id); err != nil {
		return fmt.Errorf("updating refresh token of user %d: %w", user.Id, err)
	}
	user.RefreshToken = token
	return nil
}

// MarkConfirmed flags the email address of a user as verified.
func (r *UserRepository) MarkConfirmed(ctx context.Context, email string) error {
	query := `UPDATE users SET confirmed = TRUE WHERE email = ?`

	result, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("confirming user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirming user: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateAvatar stores a new avatar URL and returns the updated user.
func (r *UserRepository) UpdateAvatar(ctx context.Context, email, url string) (*model.User, error) {
	query := `UPDATE users SET avatar = ? WHERE email = ?`

	result, err := r.db.ExecContext(ctx, query, url, email)
	if err != nil {
		return nil, fmt.Errorf("updating avatar: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating avatar: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return r.FindByEmail(ctx, email)
}
