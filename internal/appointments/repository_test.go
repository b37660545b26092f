package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

func sampleAppointment() *Appointment {
	return &Appointment{
		ID:              "appt-1",
		BusinessID:      "biz-1",
		ServiceID:       "svc-30",
		ClientName:      "Maria Silva",
		ClientEmail:     "maria@example.com",
		ClientPhone:     "5511999990000",
		ScheduledAt:     time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Status:          StatusConfirmed,
		CancelToken:     "0123456789abcdef0123456789abcdef",
	}
}

func TestInsertCommitsWhenSlotFree(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := sampleAppointment()
	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(
			appt.ID, appt.BusinessID, appt.ServiceID, appt.ClientName,
			appt.ClientEmail, appt.ClientPhone, appt.ScheduledAt,
			appt.DurationMinutes, appt.Status, appt.CancelToken,
		).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	if err := repo.Insert(context.Background(), appt); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !appt.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", appt.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestInsertRejectsOverlapBeforeWriting(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := sampleAppointment()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	if err := repo.Insert(context.Background(), appt); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("Insert = %v, want ErrSlotConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestInsertTranslatesExclusionViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := sampleAppointment()

	// The race where both writers pass the in-transaction check: the
	// exclusion constraint fires on insert.
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(
			appt.ID, appt.BusinessID, appt.ServiceID, appt.ClientName,
			appt.ClientEmail, appt.ClientPhone, appt.ScheduledAt,
			appt.DurationMinutes, appt.Status, appt.CancelToken,
		).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	if err := repo.Insert(context.Background(), appt); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("Insert = %v, want ErrSlotConflict", err)
	}
}

func TestInsertTranslatesSerializationFailure(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := sampleAppointment()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	if err := repo.Insert(context.Background(), appt); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Insert = %v, want ErrUnavailable", err)
	}
}

func TestInsertNullTokenForTokenlessBooking(t *testing.T) {
	mock, repo := newMockRepo(t)
	appt := sampleAppointment()
	appt.CancelToken = ""
	appt.Status = StatusPending

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(appt.BusinessID, appt.ScheduledAt, appt.EndsAt()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(
			appt.ID, appt.BusinessID, appt.ServiceID, appt.ClientName,
			appt.ClientEmail, appt.ClientPhone, appt.ScheduledAt,
			appt.DurationMinutes, appt.Status, nil,
		).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	mock.ExpectCommit()

	if err := repo.Insert(context.Background(), appt); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListNonCancelled(t *testing.T) {
	mock, repo := newMockRepo(t)
	before := time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC)
	start := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, scheduled_at, duration_minutes`).
		WithArgs("biz-1", before).
		WillReturnRows(pgxmock.NewRows([]string{"id", "scheduled_at", "duration_minutes"}).
			AddRow("appt-1", start, 30))

	intervals, err := repo.ListNonCancelled(context.Background(), "biz-1", before)
	if err != nil {
		t.Fatalf("ListNonCancelled: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("got %d intervals, want 1", len(intervals))
	}
	if intervals[0].AppointmentID != "appt-1" || !intervals[0].StartUTC.Equal(start) {
		t.Errorf("interval = %+v", intervals[0])
	}
	if got := intervals[0].End(); !got.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("End = %v", got)
	}
}

func TestSoftDeleteByToken(t *testing.T) {
	mock, repo := newMockRepo(t)
	token := "0123456789abcdef0123456789abcdef"
	start := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "business_id", "service_id", "client_name", "client_email",
			"client_phone", "scheduled_at", "duration_minutes", "created_at",
		}).AddRow("appt-1", "biz-1", "svc-30", "Maria Silva", "maria@example.com",
			"5511999990000", start, 30, start.Add(-24*time.Hour)))

	appt, err := repo.SoftDeleteByToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SoftDeleteByToken: %v", err)
	}
	if appt.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", appt.Status)
	}
	if appt.ID != "appt-1" {
		t.Errorf("id = %q", appt.ID)
	}
}

func TestSoftDeleteByTokenNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	token := "ffffffffffffffffffffffffffffffff"

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(token).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.SoftDeleteByToken(context.Background(), token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SoftDeleteByToken = %v, want ErrNotFound", err)
	}
}

func TestListByDay(t *testing.T) {
	mock, repo := newMockRepo(t)
	from := time.Date(2026, time.March, 2, 3, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	start := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, business_id, service_id`).
		WithArgs("biz-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "business_id", "service_id", "client_name", "client_email",
			"client_phone", "scheduled_at", "duration_minutes", "status", "created_at",
		}).
			AddRow("appt-1", "biz-1", "svc-30", "Maria", "", "", start, 30, StatusConfirmed, start).
			AddRow("appt-2", "biz-1", "svc-30", "Joana", "", "", start.Add(time.Hour), 30, StatusPending, start))

	appts, err := repo.ListByDay(context.Background(), "biz-1", from, to)
	if err != nil {
		t.Fatalf("ListByDay: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("got %d appointments, want 2", len(appts))
	}
	if appts[0].ClientName != "Maria" || appts[1].Status != StatusPending {
		t.Errorf("rows = %+v", appts)
	}
}
