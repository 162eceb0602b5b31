package comms

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestAppendFillsDefaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logStore := NewPgLog(mock)
	patientID := uuid.New()

	mock.ExpectExec("INSERT INTO communications").
		WithArgs(pgxmock.AnyArg(), &patientID, TypeWhatsApp, DirectionInbound, "2", false, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = logStore.Append(context.Background(), Record{
		PatientID: &patientID,
		Direction: DirectionInbound,
		Body:      "2",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByPatientClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logStore := NewPgLog(mock)
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM communications").
		WithArgs(patientID, 500).
		WillReturnRows(pgxmock.NewRows([]string{"id", "patient_id", "type", "direction", "body", "is_custom", "created_at"}).
			AddRow(uuid.New(), &patientID, TypeWhatsApp, DirectionOutbound, "Hi! How are you feeling today?", true, now))

	records, err := logStore.ListByPatient(context.Background(), patientID, 9999)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].IsCustom)
}
