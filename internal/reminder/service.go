// Package reminder sweeps upcoming confirmed appointments and sends each
// patient at most one reminder per sweep window.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/conversation"
	"github.com/carebridge/whatsapp-booking/internal/patient"
)

// Window names a sweep horizon.
type Window string

const (
	WindowHourly Window = "hourly" // appointments within the next hour
	WindowDaily  Window = "daily"  // appointments within the next 24 hours
)

var ErrUnknownWindow = errors.New("unknown sweep window")

func (w Window) lookahead() (time.Duration, error) {
	switch w {
	case WindowHourly:
		return time.Hour, nil
	case WindowDaily:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownWindow, string(w))
	}
}

// Report is the aggregate result of one sweep. Per-appointment problems are
// counted, never fatal for the rest of the sweep.
type Report struct {
	Window  Window
	Due     int
	Sent    int
	Skipped int // no patient or no phone number; logged, not retried
	Deduped int // a previous sweep already claimed the reminder
	Failed  int
}

type Service struct {
	appts     appointment.Repository
	patients  patient.Directory
	transport comms.Transport
	audit     comms.Log
	markers   MarkerStore
	now       func() time.Time
}

func NewService(appts appointment.Repository, patients patient.Directory, transport comms.Transport, audit comms.Log, markers MarkerStore) *Service {
	return &Service{
		appts:     appts,
		patients:  patients,
		transport: transport,
		audit:     audit,
		markers:   markers,
		now:       time.Now,
	}
}

// RunSweep finds confirmed appointments inside the window's lookahead and
// reminds each patient once. Partial completion is safe: everything already
// sent is claimed in the marker table, so a resumed sweep picks up where
// this one stopped.
func (s *Service) RunSweep(ctx context.Context, window Window) (Report, error) {
	report := Report{Window: window}

	lookahead, err := window.lookahead()
	if err != nil {
		return report, err
	}

	now := s.now()
	due, err := s.appts.FindDueBetween(ctx, now, now.Add(lookahead))
	if err != nil {
		return report, fmt.Errorf("find due appointments: %w", err)
	}
	report.Due = len(due)

	for _, appt := range due {
		s.remindOne(ctx, appt, window, &report)
	}

	return report, nil
}

func (s *Service) remindOne(ctx context.Context, appt appointment.Appointment, window Window, report *Report) {
	if appt.PatientID == nil {
		log.Printf("skipping reminder for appointment %s: no patient attached", appt.ID)
		report.Skipped++
		return
	}

	p, err := s.patients.FindByID(ctx, *appt.PatientID)
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			log.Printf("skipping reminder for appointment %s: patient %s not found", appt.ID, *appt.PatientID)
			report.Skipped++
			return
		}
		log.Printf("reminder lookup failed for appointment %s: %v", appt.ID, err)
		report.Failed++
		return
	}

	if p.CellPhone == nil || *p.CellPhone == "" {
		log.Printf("skipping reminder for appointment %s: no phone number for patient %s", appt.ID, p.ID)
		report.Skipped++
		return
	}

	claimed, err := s.markers.Claim(ctx, appt.ID, window)
	if err != nil {
		log.Printf("reminder claim failed for appointment %s: %v", appt.ID, err)
		report.Failed++
		return
	}
	if !claimed {
		report.Deduped++
		return
	}

	body := conversation.ReminderMessage(p.Name, appt.ScheduledAt)
	if _, err := s.transport.Send(ctx, *p.CellPhone, body); err != nil {
		// The claim stands, so this appointment will not be retried in the
		// same window. At-most-once is the documented trade-off.
		log.Printf("reminder send failed for appointment %s: %v", appt.ID, err)
		report.Failed++
		return
	}

	rec := comms.Record{
		PatientID: &p.ID,
		Type:      comms.TypeWhatsApp,
		Direction: comms.DirectionOutbound,
		Body:      body,
		IsCustom:  true,
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		log.Printf("failed to record reminder for appointment %s: %v", appt.ID, err)
	}

	report.Sent++
}
