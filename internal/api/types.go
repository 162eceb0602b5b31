package api

import (
	"github.com/google/uuid"
)

type SlotPayload struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

type OfferSlotsRequest struct {
	PatientIDs []string      `json:"patient_ids"`
	Slots      []SlotPayload `json:"slots"`
}

type OfferAvailableRequest struct {
	PatientID string `json:"patient_id"`
}

type CustomMessageRequest struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
}

type MoodPromptRequest struct {
	PatientID string `json:"patient_id"`
}

type RunRemindersRequest struct {
	Window string `json:"window"`
}

type InboundResponse struct {
	Flow          string     `json:"flow"`
	Reply         string     `json:"reply,omitempty"`
	Rejected      string     `json:"rejected,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type PatientOutcomePayload struct {
	PatientID uuid.UUID `json:"patient_id"`
	Sent      bool      `json:"sent"`
	Error     string    `json:"error,omitempty"`
}

type BroadcastResponse struct {
	Total    int                     `json:"total"`
	Sent     int                     `json:"sent"`
	Failed   int                     `json:"failed"`
	Outcomes []PatientOutcomePayload `json:"outcomes"`
}

type SweepResponse struct {
	Window  string `json:"window"`
	Due     int    `json:"due"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Deduped int    `json:"deduped"`
	Failed  int    `json:"failed"`
}

type CommunicationPayload struct {
	ID        uuid.UUID  `json:"id"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	Type      string     `json:"type"`
	Direction string     `json:"direction"`
	Body      string     `json:"body"`
	IsCustom  bool       `json:"is_custom"`
	CreatedAt string     `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
