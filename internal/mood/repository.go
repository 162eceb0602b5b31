package mood

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrEntryNotFound = errors.New("mood entry not found")

// Repository persists mood check-ins and their journal follow-ups.
type Repository interface {
	// CreateEntry records a new check-in with no journal yet.
	CreateEntry(ctx context.Context, patientID uuid.UUID, moodWord string) (*Entry, error)

	// FindMostRecentOpen returns the patient's newest entry whose journal is
	// still nil, or nil when every entry is complete.
	FindMostRecentOpen(ctx context.Context, patientID uuid.UUID) (*Entry, error)

	// UpdateJournal attaches the elaboration text to an entry.
	UpdateJournal(ctx context.Context, id uuid.UUID, journal string) error
}
