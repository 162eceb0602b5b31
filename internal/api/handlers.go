package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/conversation"
	"github.com/carebridge/whatsapp-booking/internal/metrics"
	"github.com/carebridge/whatsapp-booking/internal/offers"
	"github.com/carebridge/whatsapp-booking/internal/patient"
	"github.com/carebridge/whatsapp-booking/internal/reminder"
)

// ConversationEngine is the slice of the engine the handlers need. Kept as
// an interface so handler tests can run against a fake.
type ConversationEngine interface {
	HandleInbound(ctx context.Context, from, body string) (conversation.InboundOutcome, error)
	OfferSlots(ctx context.Context, patientIDs []uuid.UUID, slots []offers.Slot) (conversation.BroadcastResult, error)
	OfferAvailableWeek(ctx context.Context, patientID uuid.UUID) (conversation.BroadcastResult, error)
	SendMoodPrompt(ctx context.Context, patientID uuid.UUID) error
	SendCustomMessage(ctx context.Context, patientID uuid.UUID, text string) error
}

// ReminderRunner triggers an on-demand reminder sweep.
type ReminderRunner interface {
	RunSweep(ctx context.Context, window reminder.Window) (reminder.Report, error)
}

// inboundWebhookHandler receives the provider's form-encoded callback.
// Business conditions answer 200: the provider retries non-2xx responses,
// and a retry of an already-handled message would double-process it.
func inboundWebhookHandler(engine ConversationEngine, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_form", err.Error())
			return
		}

		from := r.PostFormValue("From")
		body := r.PostFormValue("Body")
		if from == "" || body == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "From and Body are required")
			return
		}

		start := time.Now()
		outcome, err := engine.HandleInbound(r.Context(), from, body)
		if err != nil {
			log.Printf("inbound handling failed for %s: %v", from, err)
			m.ObserveInbound("error", "error", time.Since(start).Seconds())
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
			return
		}

		status := "handled"
		if outcome.Rejected != "" {
			status = outcome.Rejected
		}
		m.ObserveInbound(string(outcome.Flow), status, time.Since(start).Seconds())

		if outcome.Flow == conversation.FlowSelection {
			result := "confirmed"
			if outcome.Appointment == nil {
				result = outcome.Rejected
			}
			m.ObserveBooking(result)
		}

		resp := InboundResponse{
			Flow:     string(outcome.Flow),
			Reply:    outcome.Reply,
			Rejected: outcome.Rejected,
		}
		if outcome.Appointment != nil {
			resp.AppointmentID = &outcome.Appointment.ID
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func offerSlotsHandler(engine ConversationEngine, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OfferSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", err.Error())
			return
		}

		ids := make([]uuid.UUID, 0, len(req.PatientIDs))
		for _, raw := range req.PatientIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_patient_id", raw)
				return
			}
			ids = append(ids, id)
		}

		slots := make([]offers.Slot, 0, len(req.Slots))
		for _, s := range req.Slots {
			slots = append(slots, offers.Slot{Date: s.Date, Time: s.Time, Reason: s.Reason})
		}

		result, err := engine.OfferSlots(r.Context(), ids, slots)
		if err != nil {
			switch {
			case errors.Is(err, conversation.ErrNoSlots), errors.Is(err, conversation.ErrNoPatients):
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			default:
				log.Printf("offer broadcast failed: %v", err)
				writeError(w, http.StatusInternalServerError, "internal_error", "failed to send offers")
			}
			return
		}

		m.ObserveBroadcast(result.Sent, result.Failed)
		writeJSON(w, http.StatusOK, broadcastResponse(result))
	}
}

func offerAvailableHandler(engine ConversationEngine, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OfferAvailableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", err.Error())
			return
		}

		id, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_patient_id", req.PatientID)
			return
		}

		result, err := engine.OfferAvailableWeek(r.Context(), id)
		if err != nil {
			if errors.Is(err, patient.ErrPatientNotFound) {
				writeError(w, http.StatusNotFound, "patient_not_found", req.PatientID)
				return
			}
			log.Printf("weekly offer failed for patient %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to send offer")
			return
		}

		m.ObserveBroadcast(result.Sent, result.Failed)
		writeJSON(w, http.StatusOK, broadcastResponse(result))
	}
}

func customMessageHandler(engine ConversationEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CustomMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", err.Error())
			return
		}

		id, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_patient_id", req.PatientID)
			return
		}

		if err := engine.SendCustomMessage(r.Context(), id, req.Message); err != nil {
			writeSendError(w, err, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func moodPromptHandler(engine ConversationEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoodPromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", err.Error())
			return
		}

		id, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_patient_id", req.PatientID)
			return
		}

		if err := engine.SendMoodPrompt(r.Context(), id); err != nil {
			writeSendError(w, err, id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func runRemindersHandler(runner ReminderRunner, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RunRemindersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", err.Error())
			return
		}

		report, err := runner.RunSweep(r.Context(), reminder.Window(req.Window))
		if err != nil {
			if errors.Is(err, reminder.ErrUnknownWindow) {
				writeError(w, http.StatusBadRequest, "unknown_window", req.Window)
				return
			}
			log.Printf("manual reminder sweep failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "sweep failed")
			return
		}

		m.ObserveReminder(string(report.Window), "sent", report.Sent)
		m.ObserveReminder(string(report.Window), "failed", report.Failed)
		writeJSON(w, http.StatusOK, SweepResponse{
			Window:  string(report.Window),
			Due:     report.Due,
			Sent:    report.Sent,
			Skipped: report.Skipped,
			Deduped: report.Deduped,
			Failed:  report.Failed,
		})
	}
}

func listCommunicationsHandler(audit comms.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_patient_id", chi.URLParam(r, "id"))
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				writeError(w, http.StatusBadRequest, "bad_limit", raw)
				return
			}
			limit = n
		}

		records, err := audit.ListByPatient(r.Context(), id, limit)
		if err != nil {
			log.Printf("failed to list communications for patient %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load communications")
			return
		}

		payload := make([]CommunicationPayload, 0, len(records))
		for _, rec := range records {
			payload = append(payload, CommunicationPayload{
				ID:        rec.ID,
				PatientID: rec.PatientID,
				Type:      rec.Type,
				Direction: rec.Direction,
				Body:      rec.Body,
				IsCustom:  rec.IsCustom,
				CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func writeSendError(w http.ResponseWriter, err error, patientID uuid.UUID) {
	switch {
	case errors.Is(err, patient.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", patientID.String())
	case errors.Is(err, conversation.ErrNoPhone):
		writeError(w, http.StatusConflict, "no_phone_number", patientID.String())
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", "message text is required")
	default:
		log.Printf("direct send to patient %s failed: %v", patientID, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to send message")
	}
}

func broadcastResponse(result conversation.BroadcastResult) BroadcastResponse {
	resp := BroadcastResponse{
		Total:    result.Total,
		Sent:     result.Sent,
		Failed:   result.Failed,
		Outcomes: make([]PatientOutcomePayload, 0, len(result.Outcomes)),
	}
	for _, o := range result.Outcomes {
		resp.Outcomes = append(resp.Outcomes, PatientOutcomePayload{
			PatientID: o.PatientID,
			Sent:      o.Sent,
			Error:     o.Error,
		})
	}
	return resp
}
