package mood

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var journal *string

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.Mood,
		&journal,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.Journal = journal
	return &e, nil
}

func (r *PgRepository) CreateEntry(ctx context.Context, patientID uuid.UUID, moodWord string) (*Entry, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO mood_entries (id, patient_id, mood, journal, created_at)
		VALUES ($1, $2, $3, NULL, now())
		RETURNING id, patient_id, mood, journal, created_at
	`, id, patientID, moodWord)

	return scanEntry(row)
}

func (r *PgRepository) FindMostRecentOpen(ctx context.Context, patientID uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, mood, journal, created_at
		FROM mood_entries
		WHERE patient_id = $1
		  AND journal IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func (r *PgRepository) UpdateJournal(ctx context.Context, id uuid.UUID, journal string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE mood_entries
		SET journal = $2
		WHERE id = $1
		  AND journal IS NULL
	`, id, journal)
	if err != nil {
		return fmt.Errorf("update journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}
