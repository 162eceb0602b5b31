package appointment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/whatsapp-booking/internal/offers"
	redisclient "github.com/carebridge/whatsapp-booking/internal/redis"
	"github.com/carebridge/whatsapp-booking/internal/timetext"
)

var (
	ErrBadSlotDate = errors.New("slot date is not a calendar date")
	ErrPatientBusy = errors.New("another message from this patient is still being processed")
)

// Service runs the booking transaction: resolve the slot's wall-clock text
// into a timestamp, reserve it atomically against the conflict window, and
// consume the patient's live offer.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	offers offers.Store
	window time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, offerStore offers.Store, window time.Duration) *Service {
	if window <= 0 {
		window = time.Hour
	}
	return &Service{
		repo:   repo,
		locker: locker,
		offers: offerStore,
		window: window,
	}
}

// Window reports the conflict half-width the service books against.
func (s *Service) Window() time.Duration {
	return s.window
}

// ResolveSlotTime turns a slot's date and time text into an absolute
// timestamp. Returns ErrBadSlotDate or timetext.ErrBadTimeFormat.
func ResolveSlotTime(slot offers.Slot) (time.Time, error) {
	day, err := time.Parse("2006-01-02", slot.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadSlotDate, slot.Date)
	}
	return timetext.ParseClockTime(slot.Time, day)
}

// Book reserves the slot for the patient. On success the patient's offer is
// cleared; on any failure the offer stays live so the patient can retry.
//
// The per-patient lock serializes concurrent messages from the same patient;
// the reservation itself is a single guarded insert, so two patients racing
// for overlapping windows cannot both end up CONFIRMED.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, slot offers.Slot) (*Appointment, error) {
	at, err := ResolveSlotTime(slot)
	if err != nil {
		return nil, err
	}

	reason := slot.Reason
	if reason == "" {
		reason = DefaultReason
	}

	var booked *Appointment

	err = s.locker.WithPatientLock(ctx, patientID, func(lockCtx context.Context) error {
		appt, err := s.repo.ReserveConfirmed(lockCtx, patientID, at, reason, s.window)
		if err != nil {
			return err
		}
		booked = appt

		// The offer is consumed by the booking. A failed clear is not worth
		// failing the transaction over: the reservation guard already blocks
		// a second booking, and the key expires on its own.
		if err := s.offers.Clear(lockCtx, patientID); err != nil {
			log.Printf("failed to clear offer for patient %s after booking %s: %v", patientID, appt.ID, err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrPatientBusy
		}
		if errors.Is(err, ErrSlotTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	return booked, nil
}
