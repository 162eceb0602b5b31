package mood

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one mood check-in. Journal is nil until the patient elaborates;
// an entry with a nil journal is "open" and claims the patient's next
// non-mood message as its journal text.
type Entry struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Mood      string
	Journal   *string
	CreatedAt time.Time
}
