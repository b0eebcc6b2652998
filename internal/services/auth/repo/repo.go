// Package repo persists users and login attempts
package repo

import (
	"context"
	"time"

	"opscreen/internal/modkit/repokit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/auth/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the auth repository
type Storage interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Insert(ctx context.Context, u domain.User) error
	Update(ctx context.Context, u domain.User) error
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	CountAdmins(ctx context.Context) (int64, error)

	RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error
	FailedAttemptsSince(ctx context.Context, email string, since time.Time) (int, *time.Time, error)
	PurgeAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const userColumns = `
	id, email, COALESCE(display_name, ''), role, active,
	password_hash, password_changed_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.Active,
		&u.PasswordHash, &u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail implements Storage, nil when missing. Emails are stored lowercase
func (s *pg) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	if err != nil {
		return nil, perr.FromPostgres(err, "user get_by_email")
	}
	return firstUser(rows)
}

// GetByID implements Storage, nil when missing
func (s *pg) GetByID(ctx context.Context, id string) (*domain.User, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, perr.FromPostgres(err, "user get_by_id")
	}
	return firstUser(rows)
}

func firstUser(rows repokit.Rows) (*domain.User, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, perr.FromPostgres(err, "user scan")
		}
		return nil, nil
	}
	u, err := scanUser(rows)
	if err != nil {
		return nil, perr.FromPostgres(err, "user scan")
	}
	return u, nil
}

// Insert implements Storage. A duplicate email surfaces as DuplicateKey
func (s *pg) Insert(ctx context.Context, u domain.User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users
			(id, email, display_name, role, active,
			password_hash, password_changed_at, created_at, updated_at)
		VALUES ($1, lower($2), NULLIF($3, ''), $4, $5, $6, $7, $8, $8)`,
		u.ID, u.Email, u.DisplayName, u.Role, u.Active,
		u.PasswordHash, u.PasswordChangedAt, u.CreatedAt,
	)
	if err != nil {
		return perr.FromPostgres(err, "user insert")
	}
	return nil
}

// Update implements Storage, writing every mutable column
func (s *pg) Update(ctx context.Context, u domain.User) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE users
		SET display_name = NULLIF($2, ''), role = $3, active = $4,
			password_hash = $5, password_changed_at = $6, updated_at = now()
		WHERE id = $1`,
		u.ID, u.DisplayName, u.Role, u.Active, u.PasswordHash, u.PasswordChangedAt,
	)
	if err != nil {
		return perr.FromPostgres(err, "user update")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("unknown user id")
	}
	return nil
}

// List implements Storage, newest first
func (s *pg) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, perr.FromPostgres(err, "user list")
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, perr.FromPostgres(err, "user scan")
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "user scan")
	}
	return out, nil
}

// CountAdmins implements Storage
func (s *pg) CountAdmins(ctx context.Context) (int64, error) {
	rows, err := s.q.Query(ctx,
		`SELECT count(*) FROM users WHERE role = 'admin' AND active`)
	if err != nil {
		return 0, perr.FromPostgres(err, "admin count")
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, perr.FromPostgres(err, "admin count scan")
		}
	}
	return n, rows.Err()
}

// RecordLoginAttempt implements Storage
func (s *pg) RecordLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO auth_login_attempts (email, success, ip, at)
		VALUES (lower($1), $2, NULLIF($3, ''), $4)`,
		a.Email, a.Success, a.IP, a.At,
	)
	if err != nil {
		return perr.FromPostgres(err, "login attempt insert")
	}
	return nil
}

// FailedAttemptsSince implements Storage: failure count in the window plus the
// most recent failure instant
func (s *pg) FailedAttemptsSince(ctx context.Context, email string, since time.Time) (int, *time.Time, error) {
	rows, err := s.q.Query(ctx, `
		SELECT count(*), max(at)
		FROM auth_login_attempts
		WHERE email = lower($1) AND NOT success AND at > $2`, email, since)
	if err != nil {
		return 0, nil, perr.FromPostgres(err, "login attempts count")
	}
	defer rows.Close()
	var n int
	var last *time.Time
	if rows.Next() {
		if err := rows.Scan(&n, &last); err != nil {
			return 0, nil, perr.FromPostgres(err, "login attempts scan")
		}
	}
	return n, last, rows.Err()
}

// PurgeAttemptsBefore implements Storage
func (s *pg) PurgeAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM auth_login_attempts WHERE at < $1`, cutoff)
	if err != nil {
		return 0, perr.FromPostgres(err, "login attempts purge")
	}
	return tag.RowsAffected(), nil
}
