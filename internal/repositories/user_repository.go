package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository covers the identity fields the routing core touches.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	Profile(ctx context.Context, userID int) (models.UserProfile, error)
	Profiles(ctx context.Context, userIDs []int) ([]models.UserProfile, error)
	SetLastSeen(ctx context.Context, userID int, lastSeen time.Time) error
	ClearLastSeen(ctx context.Context, userID int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user row.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, avatar, last_seen FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Profile fetches the display subset of a user.
func (r *UserRepo) Profile(ctx context.Context, userID int) (models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `SELECT id, name, avatar FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrUserNotFound
	}
	return profile, err
}

// Profiles fetches display profiles for a set of users.
func (r *UserRepo) Profiles(ctx context.Context, userIDs []int) ([]models.UserProfile, error) {
	if len(userIDs) == 0 {
		return []models.UserProfile{}, nil
	}
	var profiles []models.UserProfile
	err := r.db.SelectContext(ctx, &profiles, `SELECT id, name, avatar FROM users WHERE id = ANY($1::int[])`, pq.Array(userIDs))
	return profiles, err
}

// SetLastSeen records the disconnect time.
func (r *UserRepo) SetLastSeen(ctx context.Context, userID int, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen=$2 WHERE id=$1`, userID, lastSeen)
	return err
}

// ClearLastSeen nulls the marker; a null last_seen means online.
func (r *UserRepo) ClearLastSeen(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen=NULL WHERE id=$1`, userID)
	return err
}
