package mood

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func entryRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "patient_id", "mood", "journal", "created_at"})
}

func TestCreateEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	patientID := uuid.New()
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO mood_entries").
		WithArgs(pgxmock.AnyArg(), patientID, "sad").
		WillReturnRows(entryRows().AddRow(id, patientID, "sad", (*string)(nil), time.Now()))

	entry, err := repo.CreateEntry(context.Background(), patientID, "sad")
	require.NoError(t, err)
	require.Equal(t, "sad", entry.Mood)
	require.Nil(t, entry.Journal)
}

func TestFindMostRecentOpenNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	patientID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM mood_entries").
		WithArgs(patientID).
		WillReturnRows(entryRows())

	entry, err := repo.FindMostRecentOpen(context.Background(), patientID)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestUpdateJournal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE mood_entries").
		WithArgs(id, "long day at work").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateJournal(context.Background(), id, "long day at work"))
}

func TestUpdateJournalAlreadyClosed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()

	// The journal IS NULL guard in the update means an already-closed entry
	// matches zero rows.
	mock.ExpectExec("UPDATE mood_entries").
		WithArgs(id, "more text").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateJournal(context.Background(), id, "more text")
	require.ErrorIs(t, err, ErrEntryNotFound)
}
