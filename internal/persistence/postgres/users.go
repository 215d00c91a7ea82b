package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/booking-manager/internal/persistence"
)

const userColumns = `id, email, display_name, password_hash, role, tier, active, notifications_enabled, last_seen_at, created_at, updated_at`

// CreateUser inserts a new account.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, normalizeEmail(user.Email), user.DisplayName, user.PasswordHash, user.Role, user.Tier,
		user.Active, user.NotificationsEnabled, stampPtr(user.LastSeenAt), stamp(user.CreatedAt), stamp(user.UpdatedAt),
	)
	return MapError(err)
}

// UpdateUser updates an account. An empty password hash keeps the stored one.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, display_name = $2,
			password_hash = CASE WHEN $3::text = '' THEN password_hash ELSE $3::text END,
			role = $4, tier = $5, active = $6, notifications_enabled = $7, last_seen_at = $8, updated_at = $9
		WHERE id = $10
	`,
		normalizeEmail(user.Email), user.DisplayName, user.PasswordHash, user.Role, user.Tier,
		user.Active, user.NotificationsEnabled, stampPtr(user.LastSeenAt), stamp(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return requireRow(tag)
}

// GetUser retrieves an account by id.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail retrieves an account by its normalized email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalized))
}

// ListUsers returns every account ordered by creation time then id.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
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
	return users, MapError(rows.Err())
}

func scanUser(row pgx.Row) (persistence.User, error) {
	var user persistence.User
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Role, &user.Tier,
		&user.Active, &user.NotificationsEnabled, &user.LastSeenAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return persistence.User{}, MapError(err)
	}
	user.LastSeenAt = utcPtr(user.LastSeenAt)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

const sessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+sessionColumns,
		session.ID, session.UserID, session.Token, session.Fingerprint,
		stamp(session.ExpiresAt), stampPtr(session.RevokedAt), stamp(session.CreatedAt), stamp(session.UpdatedAt),
	)
	return scanSession(row)
}

// GetSession retrieves a session by its token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, normalized))
}

// RevokeSession stamps the revocation time on a session.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	at := stamp(revokedAt)
	return scanSession(s.pool.QueryRow(ctx, `
		UPDATE sessions SET revoked_at = $1, updated_at = $1 WHERE token = $2
		RETURNING `+sessionColumns, at, normalized))
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1 AND expires_at > $2`,
		stamp(reference), time.Time{})
	if err != nil {
		return 0, MapError(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (persistence.Session, error) {
	var session persistence.Session
	err := row.Scan(
		&session.ID, &session.UserID, &session.Token, &session.Fingerprint,
		&session.ExpiresAt, &session.RevokedAt, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return persistence.Session{}, MapError(err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.RevokedAt = utcPtr(session.RevokedAt)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return session, nil
}
