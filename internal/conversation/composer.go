package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/offers"
	"github.com/carebridge/whatsapp-booking/internal/timetext"
)

// Canonical outbound strings. Everything the engine sends comes from here so
// the wording is testable and stable.
const (
	MsgPatientNotFound  = "We couldn't find your record. Please contact support."
	MsgJournalAck       = "Thanks for sharing more details. Your journal has been updated."
	MsgInvalidSelection = "Invalid response. Please reply with a valid option number."
	MsgBadSlotTime      = "Sorry, that slot has an invalid time format. Please choose a different option."
	MsgSlotUnavailable  = "Sorry, this time slot is no longer available. Please select a different time."
	MsgStillProcessing  = "We're still processing your previous message. Please try again in a moment."
	MsgNoSlotsThisWeek  = "Sorry, there are no available appointments this week."
	MsgMoodPrompt       = "Hi! How are you feeling today?"
)

// MoodElaborationPrompt acknowledges a captured mood and invites a journal
// reply.
func MoodElaborationPrompt(moodWord string) string {
	return fmt.Sprintf("Thanks for sharing your mood: %q. Would you like to elaborate? Reply with your thoughts.", moodWord)
}

// SlotList renders a numbered offer, grouped by calendar date when the slots
// span more than one. Numbering runs continuously across groups because the
// patient replies with a single number.
func SlotList(patientName string, slots []offers.Slot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s, here are the available appointments:\n", patientName)

	// Group by date, preserving first-seen order so output is deterministic.
	var dates []string
	byDate := make(map[string][]offers.Slot)
	for _, slot := range slots {
		if _, seen := byDate[slot.Date]; !seen {
			dates = append(dates, slot.Date)
		}
		byDate[slot.Date] = append(byDate[slot.Date], slot)
	}

	n := 1
	for _, date := range dates {
		if len(dates) > 1 {
			fmt.Fprintf(&b, "\n%s:\n", date)
		} else {
			b.WriteString("\n")
		}
		for _, slot := range byDate[date] {
			reason := slot.Reason
			if reason == "" {
				reason = appointment.DefaultReason
			}
			fmt.Fprintf(&b, "%d. %s (%s)\n", n, slot.Time, reason)
			n++
		}
	}

	b.WriteString("\nReply with the number corresponding to your preferred time slot to book your appointment.")
	return b.String()
}

// BookingConfirmation is the single line sent after a successful booking.
func BookingConfirmation(at time.Time, reason string) string {
	if reason == "" {
		reason = appointment.DefaultReason
	}
	return fmt.Sprintf("Your appointment has been booked for %s at %s (%s). Thank you!",
		timetext.FormatLongDate(at), timetext.FormatClockTime(at), reason)
}

// ReminderMessage greets the patient by name with the long-form date and
// 12-hour time of the upcoming appointment.
func ReminderMessage(patientName string, at time.Time) string {
	return fmt.Sprintf("Hello %s, this is a reminder for your upcoming appointment on %s at %s. Please let us know if you have any questions.",
		patientName, timetext.FormatLongDate(at), timetext.FormatClockTime(at))
}
