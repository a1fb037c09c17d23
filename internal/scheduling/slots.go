package scheduling

import (
	"context"
	"time"

	"clinic-scheduler/internal/model"
)

// SlotCalculator derives bookable times from current appointment state.
type SlotCalculator struct {
	repo  Repository
	hours Hours
}

func NewSlotCalculator(repo Repository, hours Hours) *SlotCalculator {
	return &SlotCalculator{repo: repo, hours: hours}
}

// Available returns the free slots of doctorID on day, ascending. Weekends
// have no slots.
func (c *SlotCalculator) Available(ctx context.Context, doctorID string, day time.Time) ([]time.Time, error) {
	open, close := c.hours.Window(day)
	if !open.Before(close) {
		return nil, badRequest("malformed working window for %s", day.Format(dayLayout))
	}
	if weekend(open) {
		return []time.Time{}, nil
	}

	f := Filter{DoctorID: doctorID, Status: model.StatusScheduled, From: open, To: close.Add(-time.Nanosecond)}
	booked, err := c.repo.Find(ctx, f, 0, 0)
	if err != nil {
		return nil, internal("load booked slots", err)
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		taken[a.Date.UnixNano()] = struct{}{}
	}

	out := make([]time.Time, 0, int(close.Sub(open)/SlotLength))
	for t := open; t.Before(close); t = t.Add(SlotLength) {
		if _, ok := taken[t.UnixNano()]; ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
