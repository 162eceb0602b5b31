package offers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestOfferReplacesNotMerges(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	patientID := uuid.New()

	first := []Slot{
		{Date: "2024-06-01", Time: "10:00 AM"},
		{Date: "2024-06-01", Time: "2:00 PM", Reason: "Follow-up"},
	}
	require.NoError(t, store.Offer(ctx, patientID, first))

	second := []Slot{{Date: "2024-06-03", Time: "9:30 AM"}}
	require.NoError(t, store.Offer(ctx, patientID, second))

	got, err := store.Get(ctx, patientID)
	require.NoError(t, err)
	require.Equal(t, second, got)
}

func TestGetReturnsNilWhenNoOffer(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestClearRemovesOffer(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, store.Offer(ctx, patientID, []Slot{{Date: "2024-06-01", Time: "10:00 AM"}}))
	require.NoError(t, store.Clear(ctx, patientID))

	got, err := store.Get(ctx, patientID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOfferWithNoSlotsClears(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, store.Offer(ctx, patientID, []Slot{{Date: "2024-06-01", Time: "10:00 AM"}}))
	require.NoError(t, store.Offer(ctx, patientID, nil))

	got, err := store.Get(ctx, patientID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOffersAreIndependentPerPatient(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, store.Offer(ctx, a, []Slot{{Date: "2024-06-01", Time: "10:00 AM"}}))
	require.NoError(t, store.Offer(ctx, b, []Slot{{Date: "2024-06-02", Time: "4:00 PM"}}))
	require.NoError(t, store.Clear(ctx, a))

	got, err := store.Get(ctx, b)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "2024-06-02", got[0].Date)
}

func TestOfferExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	patientID := uuid.New()

	require.NoError(t, store.Offer(ctx, patientID, []Slot{{Date: "2024-06-01", Time: "10:00 AM"}}))

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, patientID)
	require.NoError(t, err)
	require.Nil(t, got)
}
