package reminder

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestClaimFirstWins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgMarkerStore(mock)
	apptID := uuid.New()

	mock.ExpectExec("INSERT INTO appointment_reminders").
		WithArgs(apptID, "hourly").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	claimed, err := store.Claim(context.Background(), apptID, WindowHourly)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestClaimSecondLoses(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgMarkerStore(mock)
	apptID := uuid.New()

	// ON CONFLICT DO NOTHING reports zero rows for the losing claim.
	mock.ExpectExec("INSERT INTO appointment_reminders").
		WithArgs(apptID, "hourly").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	claimed, err := store.Claim(context.Background(), apptID, WindowHourly)
	require.NoError(t, err)
	require.False(t, claimed)
}
