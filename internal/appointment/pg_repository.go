package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool surface the repository uses; pgxmock satisfies it in
// tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres error code raised when the confirmed_no_overlap exclusion
// constraint rejects an insert.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&patientID,
		&a.ScheduledAt,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PatientID = patientID
	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, scheduled_at, reason, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ReserveConfirmed(ctx context.Context, patientID uuid.UUID, at time.Time, reason string, window time.Duration) (*Appointment, error) {
	if reason == "" {
		reason = DefaultReason
	}
	id := uuid.New()

	// Guard insert: the NOT EXISTS subquery answers cheaply for the common
	// occupied-window case. It is not the correctness guard — under READ
	// COMMITTED two concurrent inserts can each miss the other's uncommitted
	// row. The confirmed_no_overlap exclusion constraint is what makes the
	// losing insert fail; its 23P01 is mapped to ErrSlotTaken below.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, scheduled_at, reason, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, 'CONFIRMED', now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE status = 'CONFIRMED'
			  AND scheduled_at BETWEEN $5 AND $6
		)
		RETURNING id, patient_id, scheduled_at, reason, status, created_at, updated_at
	`, id, patientID, at, reason, at.Add(-window), at.Add(window))

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrSlotTaken
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return appt, nil
}

func (r *PgRepository) FindConfirmedInWindow(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return r.findByStatusBetween(ctx, StatusConfirmed, start, end)
}

func (r *PgRepository) FindDueBetween(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return r.findByStatusBetween(ctx, StatusConfirmed, start, end)
}

func (r *PgRepository) ListAvailableBetween(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return r.findByStatusBetween(ctx, StatusAvailable, start, end)
}

func (r *PgRepository) findByStatusBetween(ctx context.Context, status Status, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, scheduled_at, reason, status, created_at, updated_at
		FROM appointments
		WHERE status = $1
		  AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at ASC
	`, status, start, end)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, scheduled_at, reason, status, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}
