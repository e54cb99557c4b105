package audits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/db"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
)

var (
	// ErrEntryNotFound is returned when no entry matches.
	ErrEntryNotFound = fmt.Errorf("audit entry: %w", httpx.ErrNotFound)
	// ErrDuplicateEntry is returned when the machine already has a reading for the day.
	ErrDuplicateEntry = fmt.Errorf("machine already audited for that date: %w", httpx.ErrDuplicate)
)

// Repository persists audit entries.
type Repository interface {
	List(ctx context.Context, f ListFilters) ([]Entry, int, error)
	Get(ctx context.Context, id int64) (Entry, error)
	Create(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, e Entry) (Entry, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, location_id, machine_id, entry_date, meter_in, meter_out, notes, created_by, created_at, updated_at`

func (r *PGRepository) List(ctx context.Context, f ListFilters) ([]Entry, int, error) {
	var q shared.Query
	if f.LocationID != nil {
		q.Where("location_id = ?", *f.LocationID)
	}
	if f.MachineID != nil {
		q.Where("machine_id = ?", *f.MachineID)
	}
	if f.From != nil {
		q.Where("entry_date >= ?", *f.From)
	}
	if f.To != nil {
		q.Where("entry_date <= ?", *f.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`+q.Clause(), q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + columns + ` FROM audit_entries` + q.Clause() +
		` ORDER BY entry_date DESC, id DESC LIMIT ` + q.Arg(f.PerPage) + ` OFFSET ` + q.Arg(f.Offset())
	rows, err := r.pool.Query(ctx, query, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Entry, error) {
	e, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM audit_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

func (r *PGRepository) Create(ctx context.Context, e Entry) (Entry, error) {
	day, err := parseDay(e.EntryDate)
	if err != nil {
		return Entry{}, err
	}
	now := time.Now()
	err = r.pool.QueryRow(ctx, `INSERT INTO audit_entries (location_id, machine_id, entry_date, meter_in, meter_out, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		e.LocationID, e.MachineID, day, e.MeterIn, e.MeterOut, e.Notes, e.CreatedBy, now).Scan(&e.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, err
	}
	e.CreatedAt, e.UpdatedAt = now, now
	return e, nil
}

func (r *PGRepository) Update(ctx context.Context, e Entry) (Entry, error) {
	day, err := parseDay(e.EntryDate)
	if err != nil {
		return Entry{}, err
	}
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `UPDATE audit_entries SET location_id = $1, machine_id = $2, entry_date = $3, meter_in = $4, meter_out = $5, notes = $6, updated_at = $7 WHERE id = $8`,
		e.LocationID, e.MachineID, day, e.MeterIn, e.MeterOut, e.Notes, now, e.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, ErrEntryNotFound
	}
	e.UpdatedAt = now
	return e, nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func scan(row pgx.Row) (Entry, error) {
	var (
		e   Entry
		day time.Time
	)
	if err := row.Scan(&e.ID, &e.LocationID, &e.MachineID, &day, &e.MeterIn, &e.MeterOut, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.EntryDate = day.Format(access.DateLayout)
	e.Net = e.MeterIn - e.MeterOut
	return e, nil
}

func parseDay(s string) (time.Time, error) {
	day, err := time.Parse(access.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: entry_date", httpx.ErrValidation)
	}
	return day, nil
}

var _ Repository = (*PGRepository)(nil)
