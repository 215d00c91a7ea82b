package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/booking-manager/internal/persistence"
)

const userColumns = `id, email, display_name, password_hash, role, tier, active, notifications_enabled, last_seen_at, created_at, updated_at`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new user into the database
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.Role,
		user.Tier,
		user.Active,
		user.NotificationsEnabled,
		formatTimePtr(user.LastSeenAt),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return MapError(err)
}

// UpdateUser updates an existing user. An empty password hash keeps the stored one.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?,
			password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END,
			role = ?, tier = ?, active = ?, notifications_enabled = ?, last_seen_at = ?, updated_at = ?
		WHERE id = ?
	`,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash, user.PasswordHash,
		user.Role,
		user.Tier,
		user.Active,
		user.NotificationsEnabled,
		formatTimePtr(user.LastSeenAt),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return rowsAffected(result)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address from the database
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation timestamp then ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		lastSeen             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&user.Tier,
		&user.Active,
		&user.NotificationsEnabled,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, MapError(err)
	}
	if user.LastSeenAt, err = parseTimePtr(lastSeen); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse last_seen_at: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
