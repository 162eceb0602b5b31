package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/whatsapp-booking/internal/offers"
	redisclient "github.com/carebridge/whatsapp-booking/internal/redis"
)

// memRepo reserves against an in-memory confirmed list with the same
// window-guard semantics as the SQL statement.
type memRepo struct {
	Repository
	mu        sync.Mutex
	confirmed []Appointment
}

func (r *memRepo) ReserveConfirmed(_ context.Context, patientID uuid.UUID, at time.Time, reason string, window time.Duration) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.confirmed {
		d := a.ScheduledAt.Sub(at)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return nil, ErrSlotTaken
		}
	}

	appt := Appointment{
		ID:          uuid.New(),
		PatientID:   &patientID,
		ScheduledAt: at,
		Reason:      reason,
		Status:      StatusConfirmed,
	}
	r.confirmed = append(r.confirmed, appt)
	return &appt, nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
	deny bool
}

func newMemLocker() *memLocker { return &memLocker{held: map[uuid.UUID]bool{}} }

func (l *memLocker) WithPatientLock(ctx context.Context, patientID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.deny || l.held[patientID] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[patientID] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, patientID)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

type memOfferStore struct {
	mu sync.Mutex
	m  map[uuid.UUID][]offers.Slot
}

func newMemOfferStore() *memOfferStore { return &memOfferStore{m: map[uuid.UUID][]offers.Slot{}} }

func (s *memOfferStore) Offer(_ context.Context, id uuid.UUID, slots []offers.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = slots
	return nil
}

func (s *memOfferStore) Get(_ context.Context, id uuid.UUID) ([]offers.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[id], nil
}

func (s *memOfferStore) Clear(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func TestBookReservesAndClearsOffer(t *testing.T) {
	repo := &memRepo{}
	store := newMemOfferStore()
	svc := NewService(repo, newMemLocker(), store, time.Hour)

	patientID := uuid.New()
	slot := offers.Slot{Date: "2024-06-01", Time: "2:00 PM"}
	require.NoError(t, store.Offer(context.Background(), patientID, []offers.Slot{slot}))

	appt, err := svc.Book(context.Background(), patientID, slot)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, appt.Status)
	require.Equal(t, time.Date(2024, time.June, 1, 14, 0, 0, 0, time.UTC), appt.ScheduledAt)
	require.Equal(t, DefaultReason, appt.Reason)

	slots, err := store.Get(context.Background(), patientID)
	require.NoError(t, err)
	require.Nil(t, slots)
}

func TestBookRejectsConflictingWindowAndKeepsOffer(t *testing.T) {
	repo := &memRepo{}
	store := newMemOfferStore()
	svc := NewService(repo, newMemLocker(), store, time.Hour)

	first := uuid.New()
	second := uuid.New()
	_, err := svc.Book(context.Background(), first, offers.Slot{Date: "2024-06-01", Time: "2:00 PM"})
	require.NoError(t, err)

	slot := offers.Slot{Date: "2024-06-01", Time: "2:30 PM"}
	require.NoError(t, store.Offer(context.Background(), second, []offers.Slot{slot}))

	_, err = svc.Book(context.Background(), second, slot)
	require.ErrorIs(t, err, ErrSlotTaken)

	// Only one confirmed appointment exists and the loser keeps the offer.
	require.Len(t, repo.confirmed, 1)
	slots, err := store.Get(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, slots, 1)
}

func TestBookAllowsSlotOutsideWindow(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, newMemLocker(), newMemOfferStore(), time.Hour)

	_, err := svc.Book(context.Background(), uuid.New(), offers.Slot{Date: "2024-06-01", Time: "2:00 PM"})
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), uuid.New(), offers.Slot{Date: "2024-06-01", Time: "4:00 PM"})
	require.NoError(t, err)
	require.Len(t, repo.confirmed, 2)
}

func TestBookBadDate(t *testing.T) {
	svc := NewService(&memRepo{}, newMemLocker(), newMemOfferStore(), time.Hour)

	_, err := svc.Book(context.Background(), uuid.New(), offers.Slot{Date: "June 1st", Time: "2:00 PM"})
	require.ErrorIs(t, err, ErrBadSlotDate)
}

func TestBookBusyPatient(t *testing.T) {
	locker := newMemLocker()
	locker.deny = true
	svc := NewService(&memRepo{}, locker, newMemOfferStore(), time.Hour)

	_, err := svc.Book(context.Background(), uuid.New(), offers.Slot{Date: "2024-06-01", Time: "2:00 PM"})
	require.ErrorIs(t, err, ErrPatientBusy)
}

func TestConcurrentBookingAdmitsOne(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, newMemLocker(), newMemOfferStore(), time.Hour)

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), uuid.New(), offers.Slot{Date: "2024-06-01", Time: "2:00 PM"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrSlotTaken)
		}
	}
	require.Equal(t, 1, won)
	require.Len(t, repo.confirmed, 1)
}
