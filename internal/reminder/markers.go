package reminder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MarkerStore records that a reminder was claimed for an appointment in a
// given sweep window. Claims are idempotent: only the first claim for an
// (appointment, window) pair succeeds, which is what keeps overlapping
// sweeps from double-sending.
type MarkerStore interface {
	// Claim returns true when this call won the right to send; false when a
	// previous sweep already claimed the pair.
	Claim(ctx context.Context, appointmentID uuid.UUID, window Window) (bool, error)
}

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgMarkerStore struct {
	pool PgxPool
}

func NewPgMarkerStore(pool PgxPool) *PgMarkerStore {
	return &PgMarkerStore{pool: pool}
}

func (s *PgMarkerStore) Claim(ctx context.Context, appointmentID uuid.UUID, window Window) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO appointment_reminders (appointment_id, window_label, sent_at)
		VALUES ($1, $2, now())
		ON CONFLICT (appointment_id, window_label) DO NOTHING
	`, appointmentID, string(window))
	if err != nil {
		return false, fmt.Errorf("claim reminder marker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
