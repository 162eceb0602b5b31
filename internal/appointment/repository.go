package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("a confirmed appointment already occupies this window")
)

// Repository contains all DB interactions needed by the booking and
// reminder services.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ReserveConfirmed inserts a CONFIRMED appointment only when no other
	// CONFIRMED appointment falls within +/-window of at. Implementations
	// must hold the invariant against concurrent reservations; the Postgres
	// one leans on the confirmed_no_overlap exclusion constraint, not just
	// its in-statement window check. Returns ErrSlotTaken when the window is
	// occupied.
	ReserveConfirmed(ctx context.Context, patientID uuid.UUID, at time.Time, reason string, window time.Duration) (*Appointment, error)

	// FindConfirmedInWindow reports CONFIRMED appointments between start and
	// end inclusive.
	FindConfirmedInWindow(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// FindDueBetween reports CONFIRMED appointments coming up in the given
	// range, for reminder sweeps.
	FindDueBetween(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// ListAvailableBetween reports unclaimed AVAILABLE slots in the range.
	ListAvailableBetween(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// UpdateStatus is the administrative override path; it only applies when
	// the row still has the expected current status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
}
