package machines

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
	List(ctx context.Context, filters shared.ListFilters) ([]Machine, int, error)
	Get(ctx context.Context, id int64) (Machine, error)
	Create(ctx context.Context, machine Machine) (Machine, error)
	Update(ctx context.Context, machine Machine) (Machine, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, location_id, vendor_id, asset_tag, name, serial_number, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Machine, int, error) {
	var q shared.Query
	q.Scoped(filters, "name", "asset_tag", "serial_number")
	if filters.VendorID != nil {
		q.Where("vendor_id = ?", *filters.VendorID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM machines`+q.Clause(), q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM machines` + q.Clause() +
		` ORDER BY ` + shared.OrderBy(filters.SortBy, filters.SortDir, "asset_tag", "name", "created_at")
	query += ` LIMIT ` + q.Arg(filters.Limit) + ` OFFSET ` + q.Arg(filters.Offset())

	rows, err := r.db.Query(ctx, query, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		machines = append(machines, m)
	}
	return machines, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Machine, error) {
	m, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM machines WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Machine{}, shared.ErrNotFound
	}
	return m, err
}

func (r *repository) Create(ctx context.Context, machine Machine) (Machine, error) {
	query := `INSERT INTO machines (location_id, vendor_id, asset_tag, name, serial_number, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, machine.LocationID, machine.VendorID, machine.AssetTag, machine.Name, machine.SerialNumber, machine.IsActive, now).Scan(&machine.ID)
	if err != nil {
		return Machine{}, mapError(err)
	}
	machine.CreatedAt, machine.UpdatedAt = now, now
	return machine, nil
}

func (r *repository) Update(ctx context.Context, machine Machine) (Machine, error) {
	query := `UPDATE machines SET location_id = $1, vendor_id = $2, asset_tag = $3, name = $4, serial_number = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	now := time.Now()
	tag, err := r.db.Exec(ctx, query, machine.LocationID, machine.VendorID, machine.AssetTag, machine.Name, machine.SerialNumber, machine.IsActive, now, machine.ID)
	if err != nil {
		return Machine{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return Machine{}, shared.ErrNotFound
	}
	machine.UpdatedAt = now
	return machine, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM machines WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (Machine, error) {
	var m Machine
	err := row.Scan(&m.ID, &m.LocationID, &m.VendorID, &m.AssetTag, &m.Name, &m.SerialNumber, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
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
