// Package comms covers the outbound message transport and the append-only
// communication log every inbound and outbound message lands in.
package comms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const TypeWhatsApp = "WHATSAPP"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Record is one audit row. IsCustom marks system-composed text (prompts,
// confirmations, replies) as opposed to relayed patient text; it is the only
// field ever read back.
type Record struct {
	ID        uuid.UUID
	PatientID *uuid.UUID
	Type      string
	Direction string
	Body      string
	IsCustom  bool
	CreatedAt time.Time
}

// Log appends communication records. Append-only; nothing in the
// conversation flow is driven by reading it back.
type Log interface {
	Append(ctx context.Context, rec Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Record, error)
}

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgLog struct {
	pool PgxPool
}

func NewPgLog(pool PgxPool) *PgLog {
	return &PgLog{pool: pool}
}

func (l *PgLog) Append(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Type == "" {
		rec.Type = TypeWhatsApp
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO communications (id, patient_id, type, direction, body, is_custom, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`, rec.ID, rec.PatientID, rec.Type, rec.Direction, rec.Body, rec.IsCustom, nullableTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("append communication: %w", err)
	}

	return nil
}

func (l *PgLog) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, patient_id, type, direction, body, is_custom, created_at
		FROM communications
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query communications: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var pid *uuid.UUID
		if err := rows.Scan(&rec.ID, &pid, &rec.Type, &rec.Direction, &rec.Body, &rec.IsCustom, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.PatientID = pid
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
