package scheduling

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinic-scheduler/internal/clock"
	"clinic-scheduler/internal/model"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service is the appointment lifecycle: booking, reads scoped to the caller,
// and the SCHEDULED -> COMPLETED | CANCELLED | NO_SHOW transitions.
type Service struct {
	repo     Repository
	users    UserLookup
	notifier Notifier
	clock    clock.Clock
	hours    Hours

	slots *SlotCalculator
	guard *ConflictGuard
	stats *StatsAggregator
}

func NewService(repo Repository, users UserLookup, n Notifier, clk clock.Clock, hours Hours) *Service {
	if n == nil {
		n = nopNotifier{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if hours.Loc == nil {
		hours = DefaultHours(nil)
	}
	return &Service{
		repo:     repo,
		users:    users,
		notifier: n,
		clock:    clk,
		hours:    hours,
		slots:    NewSlotCalculator(repo, hours),
		guard:    NewConflictGuard(repo),
		stats:    NewStatsAggregator(repo),
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event, model.Appointment) {}

// Create books date with doctorID for patientID.
func (s *Service) Create(ctx context.Context, patientID, doctorID string, date time.Time, notes string) (*model.Appointment, error) {
	if patientID == "" || doctorID == "" {
		return nil, badRequest("patient and doctor are required")
	}
	now := s.clock.Now()
	if err := s.hours.ValidateBooking(date, now); err != nil {
		return nil, err
	}

	doctor, err := s.user(ctx, doctorID, model.RoleDoctor)
	if err != nil {
		return nil, err
	}
	patient, err := s.user(ctx, patientID, model.RolePatient)
	if err != nil {
		return nil, err
	}

	if err := s.guard.Check(ctx, doctorID, date); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:        uuid.New().String(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date.UTC(),
		Status:    model.StatusScheduled,
		Notes:     SanitizeText(notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		// lost the race to a concurrent booking
		if errors.Is(err, ErrDuplicateSlot) {
			return nil, errSlotTaken
		}
		return nil, internal("create appointment", err)
	}

	a.Patient = patient.Summary()
	a.Doctor = doctor.Summary()
	s.notifier.Notify(ctx, EventCreated, *a)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string, c Caller) (*model.Appointment, error) {
	a, err := s.owned(ctx, id, c)
	if err != nil {
		return nil, err
	}
	s.attach(ctx, a, nil)
	return a, nil
}

type ListFilter struct {
	Status    model.Status
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

type ListResult struct {
	Items []model.Appointment
	Page  int
	Limit int
	Total int
	Pages int
}

func (s *Service) List(ctx context.Context, c Caller, lf ListFilter) (*ListResult, error) {
	if lf.Status != "" && !lf.Status.Valid() {
		return nil, badRequest("unknown status %q", lf.Status)
	}
	if !lf.StartDate.IsZero() && !lf.EndDate.IsZero() && lf.EndDate.Before(lf.StartDate) {
		return nil, badRequest("endDate must not be before startDate")
	}
	if lf.Page < 1 {
		lf.Page = 1
	}
	if lf.Limit < 1 {
		lf.Limit = defaultPageSize
	}
	if lf.Limit > maxPageSize {
		lf.Limit = maxPageSize
	}

	f := c.scope(Filter{Status: lf.Status, From: lf.StartDate, To: lf.EndDate})
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, internal("count appointments", err)
	}
	items, err := s.repo.Find(ctx, f, lf.Limit, (lf.Page-1)*lf.Limit)
	if err != nil {
		return nil, internal("list appointments", err)
	}

	seen := make(map[string]*model.UserSummary)
	for i := range items {
		s.attach(ctx, &items[i], seen)
	}
	return &ListResult{
		Items: items,
		Page:  lf.Page,
		Limit: lf.Limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(lf.Limit))),
	}, nil
}

// Cancel is open to both the patient and the doctor of the appointment.
func (s *Service) Cancel(ctx context.Context, id string, c Caller, reason string) (*model.Appointment, error) {
	a, err := s.owned(ctx, id, c)
	if err != nil {
		return nil, err
	}
	if err := s.canCancel(a); err != nil {
		return nil, err
	}
	prev := a.Status
	a.Status = model.StatusCancelled
	a.Notes = appendNote(a.Notes, "Cancelled", SanitizeText(reason))
	return s.commit(ctx, a, prev, EventCancelled)
}

// Remove is the soft delete: an alias of Cancel without a reason.
func (s *Service) Remove(ctx context.Context, id string, c Caller) error {
	_, err := s.Cancel(ctx, id, c, "")
	return err
}

func (s *Service) Complete(ctx context.Context, id string, c Caller, notes string) (*model.Appointment, error) {
	a, err := s.owned(ctx, id, c)
	if err != nil {
		return nil, err
	}
	if !c.IsDoctor() {
		return nil, accessDenied("only the appointment's doctor can complete it")
	}
	if err := s.canComplete(a); err != nil {
		return nil, err
	}
	prev := a.Status
	a.Status = model.StatusCompleted
	a.Notes = appendNote(a.Notes, "Completed", SanitizeText(notes))
	return s.commit(ctx, a, prev, EventCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, id string, c Caller) (*model.Appointment, error) {
	a, err := s.owned(ctx, id, c)
	if err != nil {
		return nil, err
	}
	if !c.IsDoctor() {
		return nil, accessDenied("only the appointment's doctor can mark a no-show")
	}
	if err := s.canMarkNoShow(a); err != nil {
		return nil, err
	}
	prev := a.Status
	a.Status = model.StatusNoShow
	return s.commit(ctx, a, prev, EventNoShow)
}

type UpdateInput struct {
	Status *model.Status
	Notes  *string
}

// Update replaces notes wholesale. A status change goes through the same
// rules and notifications as Cancel, Complete and MarkNoShow.
func (s *Service) Update(ctx context.Context, id string, c Caller, in UpdateInput) (*model.Appointment, error) {
	a, err := s.owned(ctx, id, c)
	if err != nil {
		return nil, err
	}
	prev := a.Status

	var ev Event
	if in.Status != nil && *in.Status != a.Status {
		to := *in.Status
		if !to.Valid() {
			return nil, badRequest("unknown status %q", to)
		}
		switch to {
		case model.StatusCancelled:
			err = s.canCancel(a)
			ev = EventCancelled
		case model.StatusCompleted:
			if !c.IsDoctor() {
				return nil, accessDenied("only the appointment's doctor can complete it")
			}
			err = s.canComplete(a)
			ev = EventCompleted
		case model.StatusNoShow:
			if !c.IsDoctor() {
				return nil, accessDenied("only the appointment's doctor can mark a no-show")
			}
			err = s.canMarkNoShow(a)
			ev = EventNoShow
		default:
			err = invalidState("a " + strings.ToLower(string(a.Status)) + " appointment cannot be rescheduled")
		}
		if err != nil {
			return nil, err
		}
		a.Status = to
	}
	if in.Notes != nil {
		a.Notes = SanitizeText(*in.Notes)
	}
	if ev == "" && in.Notes == nil {
		s.attach(ctx, a, nil)
		return a, nil
	}
	return s.commit(ctx, a, prev, ev)
}

func (s *Service) Stats(ctx context.Context, c Caller) (model.Stats, error) {
	return s.stats.For(ctx, c)
}

// AvailableSlots lists the free slots of a doctor on a YYYY-MM-DD day.
func (s *Service) AvailableSlots(ctx context.Context, doctorID, day string) ([]time.Time, error) {
	d, err := s.hours.ParseDay(day)
	if err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, doctorID, model.RoleDoctor); err != nil {
		return nil, err
	}
	return s.slots.Available(ctx, doctorID, d)
}

func (s *Service) canCancel(a *model.Appointment) error {
	if a.Status != model.StatusScheduled {
		return invalidState("only scheduled appointments can be cancelled")
	}
	if !s.clock.Now().Before(a.Date) {
		return invalidState("cannot cancel a past or already started appointment")
	}
	return nil
}

func (s *Service) canComplete(a *model.Appointment) error {
	if a.Status != model.StatusScheduled {
		return invalidState("only scheduled appointments can be completed")
	}
	return nil
}

func (s *Service) canMarkNoShow(a *model.Appointment) error {
	if a.Status != model.StatusScheduled {
		return invalidState("only scheduled appointments can be marked as no-show")
	}
	if s.clock.Now().Before(a.Date) {
		return invalidState("cannot mark a no-show before the appointment starts")
	}
	return nil
}

// commit persists a guarded by its previously read status and fires ev, if
// any, once the write has landed.
func (s *Service) commit(ctx context.Context, a *model.Appointment, prev model.Status, ev Event) (*model.Appointment, error) {
	a.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, a, prev); err != nil {
		if errors.Is(err, ErrStaleWrite) {
			return nil, invalidState("appointment was modified concurrently, reload and retry")
		}
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFound("appointment not found")
		}
		return nil, internal("update appointment", err)
	}
	s.attach(ctx, a, nil)
	if ev != "" {
		s.notifier.Notify(ctx, ev, *a)
	}
	return a, nil
}

func (s *Service) owned(ctx context.Context, id string, c Caller) (*model.Appointment, error) {
	if id == "" {
		return nil, badRequest("appointment id required")
	}
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, notFound("appointment not found")
	}
	if err != nil {
		return nil, internal("load appointment", err)
	}
	if !c.Owns(a) {
		return nil, accessDenied("you do not have access to this appointment")
	}
	return a, nil
}

func (s *Service) user(ctx context.Context, id string, role model.Role) (*model.User, error) {
	u, err := s.users.UserByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) || (err == nil && u.Role != role) {
		return nil, notFound(strings.ToLower(string(role)) + " not found")
	}
	if err != nil {
		return nil, internal("lookup user", err)
	}
	return u, nil
}

// attach joins patient and doctor summaries. Lookup failures leave the
// summary empty; reads never fail because of them.
func (s *Service) attach(ctx context.Context, a *model.Appointment, seen map[string]*model.UserSummary) {
	get := func(id string) *model.UserSummary {
		if sum, ok := seen[id]; ok {
			return sum
		}
		u, err := s.users.UserByID(ctx, id)
		if err != nil {
			return nil
		}
		sum := u.Summary()
		if seen != nil {
			seen[id] = sum
		}
		return sum
	}
	a.Patient = get(a.PatientID)
	a.Doctor = get(a.DoctorID)
}

func appendNote(notes, marker, text string) string {
	if text == "" {
		return notes
	}
	entry := marker + ": " + text
	if notes == "" {
		return entry
	}
	return notes + "\n\n" + entry
}
