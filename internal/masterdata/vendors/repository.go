package vendors

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
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, vendor Vendor) (Vendor, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, location_id, code, name, contact_name, email, phone, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	var q shared.Query
	q.Scoped(filters, "name", "code", "contact_name")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+q.Clause(), q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM vendors` + q.Clause() +
		` ORDER BY ` + shared.OrderBy(filters.SortBy, filters.SortDir, "name", "code", "created_at")
	query += ` LIMIT ` + q.Arg(filters.Limit) + ` OFFSET ` + q.Arg(filters.Offset())

	rows, err := r.db.Query(ctx, query, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	v, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM vendors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, shared.ErrNotFound
	}
	return v, err
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	query := `INSERT INTO vendors (location_id, code, name, contact_name, email, phone, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, vendor.LocationID, vendor.Code, vendor.Name, vendor.ContactName, vendor.Email, vendor.Phone, vendor.IsActive, now).Scan(&vendor.ID)
	if err != nil {
		return Vendor{}, mapError(err)
	}
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	return vendor, nil
}

func (r *repository) Update(ctx context.Context, vendor Vendor) (Vendor, error) {
	query := `UPDATE vendors SET location_id = $1, code = $2, name = $3, contact_name = $4, email = $5, phone = $6, is_active = $7, updated_at = $8 WHERE id = $9`
	now := time.Now()
	tag, err := r.db.Exec(ctx, query, vendor.LocationID, vendor.Code, vendor.Name, vendor.ContactName, vendor.Email, vendor.Phone, vendor.IsActive, now, vendor.ID)
	if err != nil {
		return Vendor{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return Vendor{}, shared.ErrNotFound
	}
	vendor.UpdatedAt = now
	return vendor, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.LocationID, &v.Code, &v.Name, &v.ContactName, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
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
