// Package conversation is the inbound classifier: it turns each WhatsApp
// message into exactly one of the mood, journal, slot-selection, or plain
// relay flows, and composes every outbound message the engine sends.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/mood"
	"github.com/carebridge/whatsapp-booking/internal/offers"
	"github.com/carebridge/whatsapp-booking/internal/patient"
	"github.com/carebridge/whatsapp-booking/internal/timetext"
)

var (
	ErrNoSlots      = errors.New("no slots provided")
	ErrNoPatients   = errors.New("no valid patients found")
	ErrNoPhone      = errors.New("patient has no phone number on record")
	ErrEmptyMessage = errors.New("message text is required")
)

// Booker runs the booking transaction for a selected slot.
type Booker interface {
	Book(ctx context.Context, patientID uuid.UUID, slot offers.Slot) (*appointment.Appointment, error)
}

// AvailabilityLister reports unclaimed AVAILABLE slots on the schedule.
type AvailabilityLister interface {
	ListAvailableBetween(ctx context.Context, start, end time.Time) ([]appointment.Appointment, error)
}

// Engine wires the classifier to its collaborators. All of them are
// interfaces; the engine owns no storage of its own.
type Engine struct {
	patients  patient.Directory
	moods     mood.Repository
	offers    offers.Store
	booking   Booker
	schedule  AvailabilityLister
	transport comms.Transport
	audit     comms.Log
	steps     []step
	now       func() time.Time
}

type Config struct {
	Patients  patient.Directory
	Moods     mood.Repository
	Offers    offers.Store
	Booking   Booker
	Schedule  AvailabilityLister
	Transport comms.Transport
	Audit     comms.Log
	Now       func() time.Time
}

// step is one classifier branch. Steps run in slice order; the first one
// that claims the message ends the evaluation.
type step struct {
	name string
	run  func(ctx context.Context, p *patient.Patient, body string) (bool, InboundOutcome, error)
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		patients:  cfg.Patients,
		moods:     cfg.Moods,
		offers:    cfg.Offers,
		booking:   cfg.Booking,
		schedule:  cfg.Schedule,
		transport: cfg.Transport,
		audit:     cfg.Audit,
		now:       cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}

	// The priority order is the contract: mood capture beats journal
	// continuation beats slot selection. Reordering this slice changes
	// patient-visible behavior.
	e.steps = []step{
		{name: "mood_check_in", run: e.stepMoodCheckIn},
		{name: "journal_continuation", run: e.stepJournalContinuation},
		{name: "slot_selection", run: e.stepSlotSelection},
	}

	return e
}

// HandleInbound classifies one inbound message and produces at most one
// reply. Business conditions come back in the outcome; only infrastructure
// failures return an error.
func (e *Engine) HandleInbound(ctx context.Context, from, body string) (InboundOutcome, error) {
	phone := strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")

	p, err := e.patients.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			e.appendComm(ctx, nil, comms.DirectionInbound, body, false)
			e.deliver(ctx, nil, phone, MsgPatientNotFound)
			return InboundOutcome{Flow: FlowNotFound, Reply: MsgPatientNotFound}, nil
		}
		return InboundOutcome{}, fmt.Errorf("resolve sender: %w", err)
	}

	// Every inbound message is audited, whichever flow claims it.
	e.appendComm(ctx, &p.ID, comms.DirectionInbound, body, false)

	for _, st := range e.steps {
		handled, out, err := st.run(ctx, p, body)
		if err != nil {
			return InboundOutcome{}, fmt.Errorf("%s: %w", st.name, err)
		}
		if handled {
			return out, nil
		}
	}

	// Outside any active flow: keep quiet. The message is already logged.
	return InboundOutcome{Flow: FlowLogged}, nil
}

func (e *Engine) stepMoodCheckIn(ctx context.Context, p *patient.Patient, body string) (bool, InboundOutcome, error) {
	kw, ok := mood.Detect(body)
	if !ok {
		return false, InboundOutcome{}, nil
	}

	if _, err := e.moods.CreateEntry(ctx, p.ID, kw); err != nil {
		return false, InboundOutcome{}, fmt.Errorf("create mood entry: %w", err)
	}

	reply := MoodElaborationPrompt(kw)
	e.reply(ctx, p, reply)
	return true, InboundOutcome{Flow: FlowMood, Reply: reply}, nil
}

func (e *Engine) stepJournalContinuation(ctx context.Context, p *patient.Patient, body string) (bool, InboundOutcome, error) {
	entry, err := e.moods.FindMostRecentOpen(ctx, p.ID)
	if err != nil {
		return false, InboundOutcome{}, fmt.Errorf("find open mood entry: %w", err)
	}
	if entry == nil {
		return false, InboundOutcome{}, nil
	}

	if err := e.moods.UpdateJournal(ctx, entry.ID, body); err != nil {
		if errors.Is(err, mood.ErrEntryNotFound) {
			// The entry was closed between lookup and update; fall through
			// to the next step rather than losing the message.
			return false, InboundOutcome{}, nil
		}
		return false, InboundOutcome{}, fmt.Errorf("update journal: %w", err)
	}

	e.reply(ctx, p, MsgJournalAck)
	return true, InboundOutcome{Flow: FlowJournal, Reply: MsgJournalAck}, nil
}

func (e *Engine) stepSlotSelection(ctx context.Context, p *patient.Patient, body string) (bool, InboundOutcome, error) {
	slots, err := e.offers.Get(ctx, p.ID)
	if err != nil {
		return false, InboundOutcome{}, fmt.Errorf("load offer: %w", err)
	}
	if len(slots) == 0 {
		return false, InboundOutcome{}, nil
	}

	idx, err := timetext.ParseSelection(body, len(slots))
	if err != nil {
		// The offer stays live so the patient can retry.
		e.reply(ctx, p, MsgInvalidSelection)
		return true, InboundOutcome{Flow: FlowSelection, Reply: MsgInvalidSelection, Rejected: RejectInvalidSelection}, nil
	}

	appt, err := e.booking.Book(ctx, p.ID, slots[idx-1])
	if err != nil {
		switch {
		case errors.Is(err, appointment.ErrBadSlotDate), errors.Is(err, timetext.ErrBadTimeFormat):
			e.reply(ctx, p, MsgBadSlotTime)
			return true, InboundOutcome{Flow: FlowSelection, Reply: MsgBadSlotTime, Rejected: RejectBadTimeFormat}, nil
		case errors.Is(err, appointment.ErrSlotTaken):
			e.reply(ctx, p, MsgSlotUnavailable)
			return true, InboundOutcome{Flow: FlowSelection, Reply: MsgSlotUnavailable, Rejected: RejectSlotTaken}, nil
		case errors.Is(err, appointment.ErrPatientBusy):
			e.reply(ctx, p, MsgStillProcessing)
			return true, InboundOutcome{Flow: FlowSelection, Reply: MsgStillProcessing, Rejected: RejectBusy}, nil
		default:
			return false, InboundOutcome{}, fmt.Errorf("book slot: %w", err)
		}
	}

	reply := BookingConfirmation(appt.ScheduledAt, appt.Reason)
	e.reply(ctx, p, reply)
	return true, InboundOutcome{Flow: FlowSelection, Reply: reply, Appointment: appt}, nil
}

// OfferSlots replaces each patient's live offer with the given slots and
// sends the numbered list. Per-patient failures are collected, never fatal
// for the rest of the broadcast.
func (e *Engine) OfferSlots(ctx context.Context, patientIDs []uuid.UUID, slots []offers.Slot) (BroadcastResult, error) {
	if len(slots) == 0 {
		return BroadcastResult{}, ErrNoSlots
	}

	pts, err := e.patients.FindByIDs(ctx, patientIDs)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("load patients: %w", err)
	}
	if len(pts) == 0 {
		return BroadcastResult{}, ErrNoPatients
	}

	result := BroadcastResult{Total: len(pts)}
	for i := range pts {
		outcome := e.offerToPatient(ctx, &pts[i], slots)
		if outcome.Sent {
			result.Sent++
		} else {
			result.Failed++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

func (e *Engine) offerToPatient(ctx context.Context, p *patient.Patient, slots []offers.Slot) PatientSendOutcome {
	if p.CellPhone == nil || *p.CellPhone == "" {
		log.Printf("skipping offer for patient %s: no phone number", p.ID)
		return PatientSendOutcome{PatientID: p.ID, Error: "no phone number on record"}
	}

	if err := e.offers.Offer(ctx, p.ID, slots); err != nil {
		return PatientSendOutcome{PatientID: p.ID, Error: fmt.Sprintf("store offer: %v", err)}
	}

	body := SlotList(p.Name, slots)
	if _, err := e.transport.Send(ctx, *p.CellPhone, body); err != nil {
		log.Printf("failed to send offer to patient %s: %v", p.ID, err)
		return PatientSendOutcome{PatientID: p.ID, Error: fmt.Sprintf("send failed: %v", err)}
	}
	e.appendComm(ctx, &p.ID, comms.DirectionOutbound, body, true)

	return PatientSendOutcome{PatientID: p.ID, Sent: true}
}

// OfferAvailableWeek offers one patient the unclaimed AVAILABLE slots of the
// next seven days.
func (e *Engine) OfferAvailableWeek(ctx context.Context, patientID uuid.UUID) (BroadcastResult, error) {
	p, err := e.patients.FindByID(ctx, patientID)
	if err != nil {
		return BroadcastResult{}, err
	}

	now := e.now()
	available, err := e.schedule.ListAvailableBetween(ctx, now, now.AddDate(0, 0, 7))
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("list available slots: %w", err)
	}

	if len(available) == 0 {
		e.reply(ctx, p, MsgNoSlotsThisWeek)
		return BroadcastResult{
			Total:    1,
			Failed:   1,
			Outcomes: []PatientSendOutcome{{PatientID: p.ID, Error: "no available slots"}},
		}, nil
	}

	slots := make([]offers.Slot, 0, len(available))
	for _, a := range available {
		slots = append(slots, offers.Slot{
			Date:     a.ScheduledAt.Format("2006-01-02"),
			Time:     timetext.FormatClockTime(a.ScheduledAt),
			Reason:   a.Reason,
			SourceID: a.ID.String(),
		})
	}

	outcome := e.offerToPatient(ctx, p, slots)
	result := BroadcastResult{Total: 1, Outcomes: []PatientSendOutcome{outcome}}
	if outcome.Sent {
		result.Sent = 1
	} else {
		result.Failed = 1
	}
	return result, nil
}

// SendMoodPrompt sends the daily check-in question to one patient.
func (e *Engine) SendMoodPrompt(ctx context.Context, patientID uuid.UUID) error {
	return e.sendDirect(ctx, patientID, MsgMoodPrompt)
}

// SendCustomMessage relays operator-composed text to one patient.
func (e *Engine) SendCustomMessage(ctx context.Context, patientID uuid.UUID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return e.sendDirect(ctx, patientID, text)
}

func (e *Engine) sendDirect(ctx context.Context, patientID uuid.UUID, text string) error {
	p, err := e.patients.FindByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.CellPhone == nil || *p.CellPhone == "" {
		return ErrNoPhone
	}

	if _, err := e.transport.Send(ctx, *p.CellPhone, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	e.appendComm(ctx, &p.ID, comms.DirectionOutbound, text, true)
	return nil
}

// reply sends a conversational response. Delivery failure is logged and
// swallowed: whatever state the flow committed stands regardless.
func (e *Engine) reply(ctx context.Context, p *patient.Patient, text string) {
	if p.CellPhone == nil || *p.CellPhone == "" {
		log.Printf("cannot reply to patient %s: no phone number", p.ID)
		return
	}
	e.deliver(ctx, &p.ID, *p.CellPhone, text)
}

func (e *Engine) deliver(ctx context.Context, patientID *uuid.UUID, phone, text string) {
	if _, err := e.transport.Send(ctx, phone, text); err != nil {
		log.Printf("outbound send to %s failed: %v", phone, err)
		return
	}
	e.appendComm(ctx, patientID, comms.DirectionOutbound, text, true)
}

// appendComm writes an audit record. Audit failures are logged, never allowed
// to break a flow.
func (e *Engine) appendComm(ctx context.Context, patientID *uuid.UUID, direction, body string, custom bool) {
	rec := comms.Record{
		PatientID: patientID,
		Type:      comms.TypeWhatsApp,
		Direction: direction,
		Body:      body,
		IsCustom:  custom,
	}
	if err := e.audit.Append(ctx, rec); err != nil {
		log.Printf("failed to append communication record: %v", err)
	}
}
