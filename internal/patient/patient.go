// Package patient resolves chat senders to patient records. The WhatsApp
// address is the patient's cell phone number; lookup by phone is
// unique-or-none.
package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrPatientNotFound = errors.New("patient not found")

type Patient struct {
	ID        uuid.UUID
	Name      string
	CellPhone *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Directory is the lookup surface the conversation engine depends on.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (*Patient, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Patient, error)
}

// PgxPool is the subset of pgxpool.Pool the directory needs, kept as an
// interface so tests can substitute pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDirectory struct {
	pool PgxPool
}

func NewPgDirectory(pool PgxPool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.CellPhone = phone
	return &p, nil
}

func (d *PgDirectory) FindByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, cell_phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// FindByPhone resolves a sender address. The cell_phone column carries a
// unique index, so at most one row can match.
func (d *PgDirectory) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, cell_phone, created_at, updated_at
		FROM patients
		WHERE cell_phone = $1
	`, phone)
	return scanPatient(row)
}

func (d *PgDirectory) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Patient, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, cell_phone, created_at, updated_at
		FROM patients
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
