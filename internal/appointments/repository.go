package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agendafacil/booking-platform/internal/schedule"
)

// Postgres error codes the write path translates.
const (
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
)

// Store is the persistence contract of the booking write path.
type Store interface {
	schedule.AppointmentSource
	Insert(ctx context.Context, appt *Appointment) error
	SoftDeleteByToken(ctx context.Context, token string) (*Appointment, error)
	ListByDay(ctx context.Context, businessID string, fromUTC, toUTC time.Time) ([]Appointment, error)
}

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresRepository persists appointments. Correctness under concurrent
// bookings rests on two layers: the insert re-checks overlap inside a
// serializable transaction, and the appointments_no_overlap exclusion
// constraint rejects the losing writer even if the database downgrades the
// isolation level.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// ListNonCancelled returns occupied intervals starting before the given
// instant, the pre-filter of the conflict scan.
func (r *PostgresRepository) ListNonCancelled(ctx context.Context, businessID string, beforeUTC time.Time) ([]schedule.BookedInterval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, scheduled_at, duration_minutes
		FROM appointments
		WHERE business_id = $1
		  AND scheduled_at < $2
		  AND status <> 'cancelled'
		  AND deleted_at IS NULL
		ORDER BY scheduled_at
	`, businessID, beforeUTC)
	if err != nil {
		return nil, translatePgError("list non-cancelled", err)
	}
	defer rows.Close()

	var intervals []schedule.BookedInterval
	for rows.Next() {
		var iv schedule.BookedInterval
		if err := rows.Scan(&iv.AppointmentID, &iv.StartUTC, &iv.DurationMinutes); err != nil {
			return nil, fmt.Errorf("appointments: scan interval: %w", err)
		}
		iv.StartUTC = iv.StartUTC.UTC()
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError("iterate intervals", err)
	}
	return intervals, nil
}

// Insert re-checks the overlap and writes the row as one serializable unit.
// A losing concurrent writer surfaces ErrSlotConflict, never a double booking.
func (r *PostgresRepository) Insert(ctx context.Context, appt *Appointment) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return translatePgError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var overlapping int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE business_id = $1
		  AND status <> 'cancelled'
		  AND deleted_at IS NULL
		  AND scheduled_at < $3
		  AND scheduled_at + make_interval(mins => duration_minutes) > $2
	`, appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).Scan(&overlapping)
	if err != nil {
		return translatePgError("overlap check", err)
	}
	if overlapping > 0 {
		return ErrSlotConflict
	}

	var cancelToken any
	if appt.CancelToken != "" {
		cancelToken = appt.CancelToken
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, business_id, service_id, client_name, client_email,
			client_phone, scheduled_at, duration_minutes, status, cancel_token
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`,
		appt.ID,
		appt.BusinessID,
		appt.ServiceID,
		appt.ClientName,
		appt.ClientEmail,
		appt.ClientPhone,
		appt.ScheduledAt,
		appt.DurationMinutes,
		appt.Status,
		cancelToken,
	).Scan(&appt.CreatedAt)
	if err != nil {
		return translatePgError("insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translatePgError("commit", err)
	}
	return nil
}

// SoftDeleteByToken cancels the appointment holding the token and burns the
// token. A second call with the same token finds no active row.
func (r *PostgresRepository) SoftDeleteByToken(ctx context.Context, token string) (*Appointment, error) {
	var appt Appointment
	err := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancel_token = NULL,
		    deleted_at = now(), updated_at = now()
		WHERE cancel_token = $1 AND deleted_at IS NULL
		RETURNING id, business_id, service_id, client_name, client_email,
		          client_phone, scheduled_at, duration_minutes, created_at
	`, token).Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.ServiceID,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.ScheduledAt,
		&appt.DurationMinutes,
		&appt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError("soft delete by token", err)
	}
	appt.Status = StatusCancelled
	appt.ScheduledAt = appt.ScheduledAt.UTC()
	return &appt, nil
}

// ListByDay returns the active appointments of a business inside a UTC range,
// ascending, for the owner's day view.
func (r *PostgresRepository) ListByDay(ctx context.Context, businessID string, fromUTC, toUTC time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, service_id, client_name, client_email,
		       client_phone, scheduled_at, duration_minutes, status, created_at
		FROM appointments
		WHERE business_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND deleted_at IS NULL
		ORDER BY scheduled_at
	`, businessID, fromUTC, toUTC)
	if err != nil {
		return nil, translatePgError("list by day", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.BusinessID,
			&appt.ServiceID,
			&appt.ClientName,
			&appt.ClientEmail,
			&appt.ClientPhone,
			&appt.ScheduledAt,
			&appt.DurationMinutes,
			&appt.Status,
			&appt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		appt.ScheduledAt = appt.ScheduledAt.UTC()
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError("iterate day rows", err)
	}
	return appts, nil
}

func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrSlotConflict
		case pgSerializationFailure:
			return fmt.Errorf("%w: %s: serialization failure", ErrUnavailable, op)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("appointments: %s: %w", op, err)
}
