package scheduling

import (
	"context"
	"time"

	"clinic-scheduler/internal/model"
)

// Filter selects appointments. Zero fields do not constrain; From and To are
// both inclusive.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    model.Status
	From      time.Time
	To        time.Time
}

// Match applies f to a single appointment. Stores without a query language
// use it directly.
func (f Filter) Match(a *model.Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.Date.After(f.To) {
		return false
	}
	return true
}

type Repository interface {
	// Create fails with ErrDuplicateSlot when the doctor already holds a
	// SCHEDULED appointment at a.Date. The check and the insert are atomic.
	Create(ctx context.Context, a *model.Appointment) error
	// Get fails with ErrRecordNotFound.
	Get(ctx context.Context, id string) (*model.Appointment, error)
	// Find returns matches ordered by date ascending. limit <= 0 returns all.
	Find(ctx context.Context, f Filter, limit, offset int) ([]model.Appointment, error)
	Count(ctx context.Context, f Filter) (int, error)
	// Update writes status and notes only if the stored status still equals
	// expect, else ErrStaleWrite.
	Update(ctx context.Context, a *model.Appointment, expect model.Status) error
}

type UserLookup interface {
	// UserByID fails with ErrRecordNotFound.
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Event string

const (
	EventCreated   Event = "created"
	EventCancelled Event = "cancelled"
	EventCompleted Event = "completed"
	EventNoShow    Event = "no_show"
)

// Notifier receives lifecycle events after the mutation has committed.
// Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, ev Event, a model.Appointment)
}
