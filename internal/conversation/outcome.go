package conversation

import (
	"github.com/google/uuid"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
)

// Flow names the classifier branch that claimed an inbound message. Exactly
// one branch claims each message.
type Flow string

const (
	FlowNotFound  Flow = "not_found"
	FlowMood      Flow = "mood"
	FlowJournal   Flow = "journal"
	FlowSelection Flow = "selection"
	FlowLogged    Flow = "logged"
)

// InboundOutcome is the structured result of handling one inbound message.
// Business conditions (unknown sender, invalid selection, taken slot) are
// reported here, not as errors; errors are reserved for infrastructure
// failures.
type InboundOutcome struct {
	Flow        Flow
	Reply       string // outbound text, empty when the flow sends nothing
	Rejected    string // non-empty when a selection attempt was turned down
	Appointment *appointment.Appointment
}

const (
	RejectInvalidSelection = "invalid_selection"
	RejectBadTimeFormat    = "bad_time_format"
	RejectSlotTaken        = "slot_taken"
	RejectBusy             = "busy"
)

// PatientSendOutcome is one patient's result inside a broadcast.
type PatientSendOutcome struct {
	PatientID uuid.UUID
	Sent      bool
	Error     string
}

// BroadcastResult aggregates a multi-patient offer send. One patient's
// failure never aborts the rest.
type BroadcastResult struct {
	Total    int
	Sent     int
	Failed   int
	Outcomes []PatientSendOutcome
}
