package scheduling

import (
	"context"
	"time"

	"clinic-scheduler/internal/model"
)

// ConflictGuard is the pre-check in front of Repository.Create. It compares
// exact timestamps; the store's uniqueness guarantee remains authoritative.
type ConflictGuard struct {
	repo Repository
}

func NewConflictGuard(repo Repository) *ConflictGuard {
	return &ConflictGuard{repo: repo}
}

func (g *ConflictGuard) Check(ctx context.Context, doctorID string, at time.Time) error {
	n, err := g.repo.Count(ctx, Filter{DoctorID: doctorID, Status: model.StatusScheduled, From: at, To: at})
	if err != nil {
		return internal("conflict check", err)
	}
	if n > 0 {
		return errSlotTaken
	}
	return nil
}

var errSlotTaken = &Error{Kind: KindConflict, Msg: "slot already booked"}
