package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusAvailable Status = "AVAILABLE"
)

// DefaultReason is used whenever a slot or booking carries no reason.
const DefaultReason = "General Consultation"

// Appointment is a row in the appointments table. PatientID is nil for
// AVAILABLE placeholder slots that have not been claimed yet.
type Appointment struct {
	ID          uuid.UUID
	PatientID   *uuid.UUID
	ScheduledAt time.Time
	Reason      string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
