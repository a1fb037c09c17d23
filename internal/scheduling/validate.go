package scheduling

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	SlotLength = 30 * time.Minute
	dayLayout  = "2006-01-02"
)

// Hours is the clinic's bookable window. Both the slot calculator and the
// booking validator read it, so they always agree.
type Hours struct {
	Loc   *time.Location
	Open  int // hour of day, inclusive
	Close int // hour of day, exclusive
}

func DefaultHours(loc *time.Location) Hours {
	if loc == nil {
		loc = time.UTC
	}
	return Hours{Loc: loc, Open: 8, Close: 18}
}

// ParseDay reads a YYYY-MM-DD calendar day in the clinic's location.
func (h Hours) ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dayLayout, strings.TrimSpace(s), h.Loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Window returns [open, close) for the calendar day of t.
func (h Hours) Window(t time.Time) (time.Time, time.Time) {
	t = t.In(h.Loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, h.Open, 0, 0, 0, h.Loc), time.Date(y, m, d, h.Close, 0, 0, 0, h.Loc)
}

func weekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ValidateBooking rejects timestamps a patient cannot book at now.
func (h Hours) ValidateBooking(t, now time.Time) error {
	if t.IsZero() {
		return badRequest("date is required")
	}
	if !t.After(now) {
		return badRequest("date must be in the future")
	}
	local := t.In(h.Loc)
	if weekend(local) {
		return badRequest("appointments cannot be booked on weekends")
	}
	if local.Second() != 0 || local.Nanosecond() != 0 || local.Minute()%int(SlotLength/time.Minute) != 0 {
		return badRequest("time must be aligned to %d-minute slots", int(SlotLength/time.Minute))
	}
	open, close := h.Window(local)
	if local.Before(open) || !local.Before(close) {
		return badRequest("time must be between %02d:00 and %02d:00", h.Open, h.Close)
	}
	return nil
}

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from free text. The result is plain text:
// entities the policy emits are decoded, so escaping is left to the display.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
