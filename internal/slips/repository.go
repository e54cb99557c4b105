package slips

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

const maxNumberAttempts = 5

var (
	// ErrSlipNotFound is returned when no slip matches.
	ErrSlipNotFound = fmt.Errorf("slip: %w", httpx.ErrNotFound)
	// ErrNumberContention is returned when no free slip number was found.
	ErrNumberContention = fmt.Errorf("could not allocate a slip number, retry: %w", httpx.ErrConflict)
)

// Repository persists slips.
type Repository interface {
	List(ctx context.Context, f ListFilters) ([]Slip, int, error)
	Get(ctx context.Context, id int64) (Slip, error)
	// Create assigns the slip number and inserts the row atomically.
	Create(ctx context.Context, s Slip) (Slip, error)
	Update(ctx context.Context, s Slip) (Slip, error)
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

const columns = `id, number, kind, location_id, slip_date, amount, description, reference, created_by, created_at, updated_at`

func (r *PGRepository) List(ctx context.Context, f ListFilters) ([]Slip, int, error) {
	var q shared.Query
	if f.Kind != nil {
		q.Where("kind = ?", string(*f.Kind))
	}
	if f.LocationID != nil {
		q.Where("location_id = ?", *f.LocationID)
	}
	if f.From != nil {
		q.Where("slip_date >= ?", *f.From)
	}
	if f.To != nil {
		q.Where("slip_date <= ?", *f.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM slips`+q.Clause(), q.Args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + columns + ` FROM slips` + q.Clause() +
		` ORDER BY slip_date DESC, number DESC LIMIT ` + q.Arg(f.PerPage) + ` OFFSET ` + q.Arg(f.Offset())
	rows, err := r.pool.Query(ctx, query, q.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Slip
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Slip, error) {
	s, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM slips WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Slip{}, ErrSlipNotFound
	}
	return s, err
}

// Create reads the highest same-day sequence for the location and kind and
// inserts the new slip with the next number in one RepeatableRead transaction. A unique
// violation or serialization failure retries with the following number.
func (r *PGRepository) Create(ctx context.Context, s Slip) (Slip, error) {
	day, err := time.Parse(access.DateLayout, s.SlipDate)
	if err != nil {
		return Slip{}, fmt.Errorf("%w: slip_date", httpx.ErrValidation)
	}
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		out := s
		err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			var lastSeq int
			if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(split_part(number, '-', 3)::int), 0) FROM slips WHERE location_id = $1 AND kind = $2 AND slip_date = $3`,
				out.LocationID, string(out.Kind), day).Scan(&lastSeq); err != nil {
				return err
			}
			out.Number = NextNumber(out.Kind, day, lastSeq, attempt)
			return tx.QueryRow(ctx, `INSERT INTO slips (number, kind, location_id, slip_date, amount, description, reference, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING id, created_at, updated_at`,
				out.Number, string(out.Kind), out.LocationID, day, out.Amount, out.Description, out.Reference, out.CreatedBy).
				Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
		})
		if err == nil {
			return out, nil
		}
		if db.IsUniqueViolation(err) || db.IsSerializationFailure(err) {
			continue
		}
		return Slip{}, err
	}
	return Slip{}, ErrNumberContention
}

func (r *PGRepository) Update(ctx context.Context, s Slip) (Slip, error) {
	err := r.pool.QueryRow(ctx, `UPDATE slips SET amount = $1, description = $2, reference = $3, updated_at = NOW() WHERE id = $4 RETURNING updated_at`,
		s.Amount, s.Description, s.Reference, s.ID).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slip{}, ErrSlipNotFound
	}
	if err != nil {
		return Slip{}, err
	}
	return s, nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlipNotFound
	}
	return nil
}

func scan(row pgx.Row) (Slip, error) {
	var (
		s    Slip
		kind string
		day  time.Time
	)
	if err := row.Scan(&s.ID, &s.Number, &kind, &s.LocationID, &day, &s.Amount, &s.Description, &s.Reference, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Slip{}, err
	}
	s.Kind = Kind(kind)
	s.SlipDate = day.Format(access.DateLayout)
	return s, nil
}

var _ Repository = (*PGRepository)(nil)
