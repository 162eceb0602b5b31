package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/carebridge/whatsapp-booking/internal/offers"
)

func TestSlotListSingleDate(t *testing.T) {
	got := SlotList("Ada", []offers.Slot{
		{Date: "2024-06-01", Time: "10:00 AM"},
		{Date: "2024-06-01", Time: "2:00 PM", Reason: "Follow-up"},
	})

	if !strings.Contains(got, "Hello Ada") {
		t.Errorf("missing greeting: %q", got)
	}
	if !strings.Contains(got, "1. 10:00 AM (General Consultation)") {
		t.Errorf("missing defaulted first line: %q", got)
	}
	if !strings.Contains(got, "2. 2:00 PM (Follow-up)") {
		t.Errorf("missing second line: %q", got)
	}
	// A single date needs no date headers.
	if strings.Contains(got, "2024-06-01:") {
		t.Errorf("unexpected date header for single-date offer: %q", got)
	}
	if !strings.Contains(got, "Reply with the number") {
		t.Errorf("missing instruction line: %q", got)
	}
}

func TestSlotListGroupsByDate(t *testing.T) {
	got := SlotList("Ada", []offers.Slot{
		{Date: "2024-06-01", Time: "10:00 AM"},
		{Date: "2024-06-02", Time: "9:00 AM"},
		{Date: "2024-06-01", Time: "2:00 PM"},
	})

	if !strings.Contains(got, "2024-06-01:") || !strings.Contains(got, "2024-06-02:") {
		t.Fatalf("missing date headers: %q", got)
	}

	// Numbering runs continuously across groups and follows encounter order
	// of the dates.
	for _, line := range []string{"1. 10:00 AM", "2. 2:00 PM", "3. 9:00 AM"} {
		if !strings.Contains(got, line) {
			t.Errorf("missing %q in %q", line, got)
		}
	}
}

func TestSlotListDeterministic(t *testing.T) {
	slots := []offers.Slot{
		{Date: "2024-06-02", Time: "9:00 AM"},
		{Date: "2024-06-01", Time: "10:00 AM"},
	}
	a := SlotList("Ada", slots)
	b := SlotList("Ada", slots)
	if a != b {
		t.Fatal("SlotList is not deterministic for identical input")
	}
}

func TestBookingConfirmation(t *testing.T) {
	at := time.Date(2024, time.June, 1, 14, 0, 0, 0, time.UTC)

	got := BookingConfirmation(at, "")
	want := "Your appointment has been booked for Saturday, June 1, 2024 at 2:00 PM (General Consultation). Thank you!"
	if got != want {
		t.Errorf("BookingConfirmation = %q, want %q", got, want)
	}

	got = BookingConfirmation(at, "Therapy")
	if !strings.Contains(got, "(Therapy)") {
		t.Errorf("BookingConfirmation dropped the reason: %q", got)
	}
}

func TestReminderMessage(t *testing.T) {
	at := time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)
	got := ReminderMessage("Ada", at)
	if !strings.Contains(got, "Hello Ada") || !strings.Contains(got, "Saturday, June 1, 2024") || !strings.Contains(got, "9:30 AM") {
		t.Errorf("ReminderMessage = %q", got)
	}
}

func TestMoodElaborationPrompt(t *testing.T) {
	got := MoodElaborationPrompt("sad")
	if !strings.Contains(got, `"sad"`) {
		t.Errorf("prompt should quote the mood: %q", got)
	}
}
