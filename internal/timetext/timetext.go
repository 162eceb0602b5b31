// Package timetext parses the free-form clock times and numeric slot
// selections patients type into the chat, and renders them back into
// human-readable form for outbound messages.
package timetext

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadTimeFormat = errors.New("time text does not match H:MM with optional AM/PM")
	ErrBadSelection  = errors.New("reply is not a valid option number")
)

// clockRe accepts "3:30 PM", "3:30PM", "15:30" and nothing else.
var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?$`)

// ParseClockTime resolves a clock-time string against a calendar day and
// returns an absolute timestamp with seconds and sub-seconds zeroed.
// 12 AM maps to hour 0, 12 PM stays 12, any other PM hour gains 12.
func ParseClockTime(text string, day time.Time) (time.Time, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
	}

	meridiem := strings.ToUpper(m[3])
	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, text)
		}
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}

// ParseSelection interprets a reply as a 1-based pick from an offered list.
// offered is the number of options currently live for the patient.
func ParseSelection(text string, offered int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadSelection, text)
	}
	if n > offered {
		return 0, fmt.Errorf("%w: option %d of %d", ErrBadSelection, n, offered)
	}
	return n, nil
}

// FormatClockTime renders a timestamp in 12-hour notation, e.g. "2:00 PM".
func FormatClockTime(t time.Time) string {
	return t.Format("3:04 PM")
}

// FormatLongDate renders the long calendar form used in chat messages,
// e.g. "Saturday, June 1, 2024".
func FormatLongDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}
