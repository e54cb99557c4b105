package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/db"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

// ErrEmailTaken is returned when the email already belongs to another account.
var ErrEmailTaken = fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)

// ErrUserNotFound is returned when no account matches.
var ErrUserNotFound = fmt.Errorf("user: %w", httpx.ErrNotFound)

// ErrUserInUse is returned when records still reference the account.
var ErrUserInUse = fmt.Errorf("user has recorded entries, deactivate instead: %w", httpx.ErrConflict)

// Repository defines data access methods for users.
type Repository interface {
	List(ctx context.Context, locationID *int64, page shared.PageRequest) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, hash string) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, role, location_id, is_active, password_hash, created_at, updated_at`

// List returns users, restricted to one location when locationID is set.
func (r *PGRepository) List(ctx context.Context, locationID *int64, page shared.PageRequest) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE ($1::bigint IS NULL OR location_id = $1)`, locationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
WHERE ($1::bigint IS NULL OR location_id = $1)
ORDER BY name, id LIMIT $2 OFFSET $3`, locationID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Get fetches a single user.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// Create inserts a user and returns the stored row.
func (r *PGRepository) Create(ctx context.Context, u User) (User, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, role, location_id, is_active, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		u.Email, u.Name, u.Role.String(), u.LocationID, u.IsActive, u.PasswordHash, now).Scan(&u.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return u, nil
}

// Update stores name, role, location and active flag.
func (r *PGRepository) Update(ctx context.Context, u User) (User, error) {
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $1, role = $2, location_id = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		u.Name, u.Role.String(), u.LocationID, u.IsActive, now, u.ID)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrUserNotFound
	}
	u.UpdatedAt = now
	return u, nil
}

// Delete removes a user.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPassword replaces the stored bcrypt hash.
func (r *PGRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.LocationID, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	// Unrecognised roles stay RoleUnknown and carry no edit rights.
	u.Role, _ = access.ParseRole(role)
	return u, nil
}

var _ Repository = (*PGRepository)(nil)
