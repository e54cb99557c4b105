package locations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/db"
)

type Repository interface {
	// List treats filters.LocationID as a filter on the location id itself.
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, location Location) (Location, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, code, name, address, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	var q shared.Query
	scope := filters.LocationID
	filters.LocationID = nil
	q.Scoped(filters, "name", "code")
	if scope != nil {
		q.Where("id = ?", *scope)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM locations`+q.Clause(), q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM locations` + q.Clause() +
		` ORDER BY ` + shared.OrderBy(filters.SortBy, filters.SortDir, "name", "code", "created_at")
	query += ` LIMIT ` + q.Arg(filters.Limit) + ` OFFSET ` + q.Arg(filters.Offset())

	rows, err := r.db.Query(ctx, query, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	l, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM locations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return l, err
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO locations (code, name, address, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		location.Code, location.Name, location.Address, location.IsActive, now).Scan(&location.ID)
	if err != nil {
		return Location{}, mapError(err)
	}
	location.CreatedAt, location.UpdatedAt = now, now
	return location, nil
}

func (r *repository) Update(ctx context.Context, location Location) (Location, error) {
	now := time.Now()
	tag, err := r.db.Exec(ctx, `UPDATE locations SET code = $1, name = $2, address = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		location.Code, location.Name, location.Address, location.IsActive, now, location.ID)
	if err != nil {
		return Location{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return Location{}, shared.ErrNotFound
	}
	location.UpdatedAt = now
	return location, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func mapError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return shared.ErrDuplicateCode
	case db.IsForeignKeyViolation(err):
		return shared.ErrInUse
	default:
		return err
	}
}
