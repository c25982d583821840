package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/platform/db"
	"github.com/razezix/authgate/internal/shared"
)

// Repository defines persistence operations for the accounts module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error)
	UpdateUser(ctx context.Context, id int64, fullName, email *string) (*User, error)
	DeactivateUser(ctx context.Context, id int64) error

	CreateSession(ctx context.Context, sess authn.Session) error
	RevokeSession(ctx context.Context, id string) error
	RevokeAllSessions(ctx context.Context, userID int64) error

	authn.SessionStore
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, full_name, email, password_hash, is_active, created_at, updated_at`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CreateUser inserts a new active user.
func (r *PGRepository) CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, password_hash, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING `+userColumns, fullName, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser applies the provided profile changes. Nil fields are untouched.
func (r *PGRepository) UpdateUser(ctx context.Context, id int64, fullName, email *string) (*User, error) {
	user, err := r.scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET full_name = COALESCE($2, full_name),
		     email = COALESCE($3, email),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns, id, fullName, email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// DeactivateUser marks the user inactive and revokes every active session in
// one transaction. Sessions created after the revocation timestamp are not
// retroactively revoked.
func (r *PGRepository) DeactivateUser(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx,
			`UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, id)
		return err
	})
}

// CreateSession persists a new login session.
func (r *PGRepository) CreateSession(ctx context.Context, sess authn.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(), sess.IP, sess.UserAgent)
	return err
}

// RevokeSession stamps revoked_at on a single session. Already revoked
// sessions keep their original timestamp.
func (r *PGRepository) RevokeSession(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RevokeAllSessions revokes every active session the user holds, in a single
// bulk update stamped at execution time.
func (r *PGRepository) RevokeAllSessions(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	return err
}

const sessionJoin = `
	SELECT s.id, s.user_id, s.created_at, s.expires_at, s.revoked_at, s.ip, s.user_agent,
	       u.id, u.email, u.is_active
	FROM sessions s JOIN users u ON u.id = s.user_id`

// SessionForUser fetches a session matching both session id and user id,
// joined with its owning user. Used by the bearer-token path.
func (r *PGRepository) SessionForUser(ctx context.Context, id string, userID int64) (authn.User, authn.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, sessionJoin+` WHERE s.id = $1 AND s.user_id = $2`, id, userID))
}

// SessionByID fetches a session by id alone. Used by the cookie path.
func (r *PGRepository) SessionByID(ctx context.Context, id string) (authn.User, authn.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, sessionJoin+` WHERE s.id = $1`, id))
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func scanSession(row pgx.Row) (authn.User, authn.Session, error) {
	var (
		user      authn.User
		sess      authn.Session
		revokedAt *time.Time
		ip        *string
		userAgent *string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &revokedAt, &ip, &userAgent,
		&user.ID, &user.Email, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authn.User{}, authn.Session{}, shared.ErrNotFound
		}
		return authn.User{}, authn.Session{}, err
	}
	sess.RevokedAt = revokedAt
	if ip != nil {
		sess.IP = *ip
	}
	if userAgent != nil {
		sess.UserAgent = *userAgent
	}
	return user, sess, nil
}

var _ Repository = (*PGRepository)(nil)
