package handler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/clock"
	"clinic-scheduler/internal/handler"
	"clinic-scheduler/internal/middleware"
	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
	"clinic-scheduler/internal/store/memstore"
)

const secret = "test-secret"

var (
	// Sunday 2025-06-01 12:00 UTC
	now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Tuesday 2025-06-10 09:00 UTC
	tue9 = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	h     *handler.Handler
	store *memstore.Store
	clock *clock.Fixed
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	clk := clock.NewFixed(now)
	svc := scheduling.NewService(st, st, nil, clk, scheduling.DefaultHours(time.UTC))
	return &fixture{h: handler.New(svc, st, secret, zerolog.Nop()), store: st, clock: clk}
}

func registerUser(t *testing.T, h *handler.Handler, role model.Role) string {
	t.Helper()
	req := &handler.RegisterRequest{
		Email:    fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		Password: "testpass123",
		Name:     "Test " + string(role),
		Role:     string(role),
	}
	if role == model.RoleDoctor {
		req.Specialty = "cardiology"
	}
	rr, err := h.Register(context.Background(), req)
	require.NoError(t, err)
	return rr.UserID
}

func authedCtx(id string, role model.Role) context.Context {
	return middleware.WithCaller(context.Background(), scheduling.Caller{ID: id, Role: role})
}

func book(t *testing.T, h *handler.Handler, ctx context.Context, doctorID string, at time.Time) *handler.Appointment {
	t.Helper()
	cr, err := h.CreateAppointment(ctx, &handler.CreateAppointmentRequest{
		DoctorID: doctorID,
		Date:     at.Format(time.RFC3339),
		Notes:    "test notes",
	})
	require.NoError(t, err)
	return cr.Appointment
}

// ----- auth tests -----

func TestRegister(t *testing.T) {
	f := setup(t)

	rr, err := f.h.Register(context.Background(), &handler.RegisterRequest{
		Email: "new@test.com", Password: "testpass123", Name: "New <b>User</b>",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rr.UserID)
	assert.NotEmpty(t, rr.Token)

	u, err := f.store.UserByID(context.Background(), rr.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, u.Role)
	assert.Equal(t, "New User", u.Name)
	assert.NotEqual(t, "testpass123", u.PasswordHash)

	c, err := middleware.Authenticate("Bearer "+rr.Token, secret)
	require.NoError(t, err)
	assert.Equal(t, scheduling.Patient(rr.UserID), c)
}

func TestRegisterKeepsPunctuation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dr, err := f.h.Register(ctx, &handler.RegisterRequest{
		Email: "davila@test.com", Password: "testpass123", Name: "Ana D'Avila & Filhos",
		Role: "DOCTOR", Specialty: "ear, nose & throat",
	})
	require.NoError(t, err)

	u, err := f.store.UserByID(ctx, dr.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ana D'Avila & Filhos", u.Name)
	assert.Equal(t, "ear, nose & throat", u.Specialty)

	pid := registerUser(t, f.h, model.RolePatient)
	pctx := authedCtx(pid, model.RolePatient)
	a := book(t, f.h, pctx, dr.UserID, tue9)
	require.NotNil(t, a.Doctor)
	assert.Equal(t, "Ana D'Avila & Filhos", a.Doctor.Name)

	// repeated edits do not pile up entities
	notes := "Tom & Jerry's check-up"
	for i := 0; i < 2; i++ {
		ur, err := f.h.UpdateAppointment(pctx, &handler.UpdateAppointmentRequest{ID: a.ID, Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, notes, ur.Appointment.Notes)
		notes = ur.Appointment.Notes
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		req  *handler.RegisterRequest
	}{
		{"empty email", &handler.RegisterRequest{Email: "", Password: "testpass123", Name: "X"}},
		{"bad email", &handler.RegisterRequest{Email: "not-an-email", Password: "testpass123", Name: "X"}},
		{"empty password", &handler.RegisterRequest{Email: "a@b.com", Password: "", Name: "X"}},
		{"short password", &handler.RegisterRequest{Email: "a@b.com", Password: "short", Name: "X"}},
		{"empty name", &handler.RegisterRequest{Email: "a@b.com", Password: "testpass123", Name: ""}},
		{"unknown role", &handler.RegisterRequest{Email: "a@b.com", Password: "testpass123", Name: "X", Role: "ADMIN"}},
		{"doctor without specialty", &handler.RegisterRequest{Email: "a@b.com", Password: "testpass123", Name: "X", Role: "doctor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.h.Register(context.Background(), tt.req)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := setup(t)
	req := &handler.RegisterRequest{Email: "dup@test.com", Password: "testpass123", Name: "First"}
	_, err := f.h.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "DUP@test.com"
	_, err = f.h.Register(context.Background(), req)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestLogin(t *testing.T) {
	f := setup(t)
	_, err := f.h.Register(context.Background(), &handler.RegisterRequest{
		Email: "doc@test.com", Password: "testpass123", Name: "Dr. Who", Role: "DOCTOR", Specialty: "general",
	})
	require.NoError(t, err)

	lr, err := f.h.Login(context.Background(), &handler.LoginRequest{Email: "doc@test.com", Password: "testpass123"})
	require.NoError(t, err)
	assert.NotEmpty(t, lr.Token)
	assert.Equal(t, "Dr. Who", lr.Name)
	assert.Equal(t, "DOCTOR", lr.Role)

	_, err = f.h.Login(context.Background(), &handler.LoginRequest{Email: "doc@test.com", Password: "wrongpassword"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = f.h.Login(context.Background(), &handler.LoginRequest{Email: "nobody@nowhere.com", Password: "testpass123"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = f.h.Login(context.Background(), &handler.LoginRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

// ----- appointment lifecycle -----

func TestCreateAppointment(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)

	a := book(t, f.h, authedCtx(pid, model.RolePatient), did, tue9)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, pid, a.PatientID)
	assert.Equal(t, did, a.DoctorID)
	assert.Equal(t, "SCHEDULED", a.Status)
	assert.Equal(t, "test notes", a.Notes)
	require.NotNil(t, a.Doctor)
	assert.Equal(t, "cardiology", a.Doctor.Specialty)

	// a doctor books into their own agenda
	dr, err := f.h.CreateAppointment(authedCtx(did, model.RoleDoctor), &handler.CreateAppointmentRequest{
		PatientID: pid,
		Date:      tue9.Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, did, dr.Appointment.DoctorID)
}

func TestCreateAppointmentErrors(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	other := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	ctx := authedCtx(pid, model.RolePatient)
	book(t, f.h, ctx, did, tue9)

	tests := []struct {
		name string
		ctx  context.Context
		req  *handler.CreateAppointmentRequest
		want codes.Code
	}{
		{"unauthenticated", context.Background(), &handler.CreateAppointmentRequest{DoctorID: did, Date: tue9.Format(time.RFC3339)}, codes.Unauthenticated},
		{"missing date", ctx, &handler.CreateAppointmentRequest{DoctorID: did}, codes.InvalidArgument},
		{"unparseable date", ctx, &handler.CreateAppointmentRequest{DoctorID: did, Date: "10/06/2025 09:00"}, codes.InvalidArgument},
		{"missing doctor", ctx, &handler.CreateAppointmentRequest{Date: tue9.Format(time.RFC3339)}, codes.InvalidArgument},
		{"for another patient", ctx, &handler.CreateAppointmentRequest{PatientID: other, DoctorID: did, Date: tue9.Format(time.RFC3339)}, codes.PermissionDenied},
		{"unknown doctor", ctx, &handler.CreateAppointmentRequest{DoctorID: uuid.NewString(), Date: tue9.Format(time.RFC3339)}, codes.NotFound},
		{"past", ctx, &handler.CreateAppointmentRequest{DoctorID: did, Date: "2020-01-01T09:00:00Z"}, codes.InvalidArgument},
		{"weekend", ctx, &handler.CreateAppointmentRequest{DoctorID: did, Date: "2025-06-14T09:00:00Z"}, codes.InvalidArgument},
		{"slot taken", authedCtx(other, model.RolePatient), &handler.CreateAppointmentRequest{DoctorID: did, Date: tue9.Format(time.RFC3339)}, codes.AlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.h.CreateAppointment(tt.ctx, tt.req)
			assert.Equal(t, tt.want, status.Code(err), err)
		})
	}
}

func TestGetAppointment(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	other := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	a := book(t, f.h, authedCtx(pid, model.RolePatient), did, tue9)

	gr, err := f.h.GetAppointment(authedCtx(did, model.RoleDoctor), &handler.GetAppointmentRequest{ID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, a.ID, gr.Appointment.ID)
	require.NotNil(t, gr.Appointment.Patient)

	_, err = f.h.GetAppointment(authedCtx(other, model.RolePatient), &handler.GetAppointmentRequest{ID: a.ID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = f.h.GetAppointment(authedCtx(pid, model.RolePatient), &handler.GetAppointmentRequest{ID: uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.h.GetAppointment(authedCtx(pid, model.RolePatient), &handler.GetAppointmentRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListAppointments(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	ctx := authedCtx(pid, model.RolePatient)

	book(t, f.h, ctx, did, tue9)
	book(t, f.h, ctx, did, tue9.Add(8*time.Hour+30*time.Minute))
	third := book(t, f.h, ctx, did, tue9.Add(24*time.Hour))
	_, err := f.h.CancelAppointment(ctx, &handler.CancelAppointmentRequest{ID: third.ID})
	require.NoError(t, err)

	lr, err := f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, lr.Total)
	assert.Equal(t, 1, lr.Page)
	assert.Equal(t, 10, lr.Limit)
	assert.Equal(t, 1, lr.Pages)

	// a bare end day covers the whole day
	day, err := f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{StartDate: "2025-06-10", EndDate: "2025-06-10"})
	require.NoError(t, err)
	assert.Equal(t, 2, day.Total)

	sched, err := f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{Status: "scheduled", Limit: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Total)
	assert.Equal(t, 2, sched.Pages)
	require.Len(t, sched.Items, 1)
	assert.True(t, sched.Items[0].Date.Equal(tue9.Add(8*time.Hour+30*time.Minute)))

	_, err = f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{Status: "archived"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{StartDate: "yesterday"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = f.h.ListAppointments(ctx, &handler.ListAppointmentsRequest{StartDate: "2025-06-11", EndDate: "2025-06-10"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	docList, err := f.h.ListAppointments(authedCtx(did, model.RoleDoctor), &handler.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, docList.Total)
}

func TestCancelAndComplete(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	pctx := authedCtx(pid, model.RolePatient)
	dctx := authedCtx(did, model.RoleDoctor)

	a := book(t, f.h, pctx, did, tue9)
	cr, err := f.h.CancelAppointment(pctx, &handler.CancelAppointmentRequest{ID: a.ID, Reason: "Conflito de agenda"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cr.Appointment.Status)
	assert.Contains(t, cr.Appointment.Notes, "Cancelled: Conflito de agenda")

	_, err = f.h.CompleteAppointment(dctx, &handler.CompleteAppointmentRequest{ID: a.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	b := book(t, f.h, pctx, did, tue9)
	_, err = f.h.CompleteAppointment(pctx, &handler.CompleteAppointmentRequest{ID: b.ID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	done, err := f.h.CompleteAppointment(dctx, &handler.CompleteAppointmentRequest{ID: b.ID, Notes: "all good"})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", done.Appointment.Status)
	assert.Contains(t, done.Appointment.Notes, "Completed: all good")
}

func TestMarkNoShow(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	a := book(t, f.h, authedCtx(pid, model.RolePatient), did, tue9)
	dctx := authedCtx(did, model.RoleDoctor)

	_, err := f.h.MarkNoShow(dctx, &handler.MarkNoShowRequest{ID: a.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	f.clock.Set(tue9.Add(20 * time.Minute))
	r, err := f.h.MarkNoShow(dctx, &handler.MarkNoShowRequest{ID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, "NO_SHOW", r.Appointment.Status)
}

func TestUpdateAppointment(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	pctx := authedCtx(pid, model.RolePatient)
	a := book(t, f.h, pctx, did, tue9)

	notes := "bring exams"
	ur, err := f.h.UpdateAppointment(pctx, &handler.UpdateAppointmentRequest{ID: a.ID, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "bring exams", ur.Appointment.Notes)

	st := "completed"
	_, err = f.h.UpdateAppointment(pctx, &handler.UpdateAppointmentRequest{ID: a.ID, Status: &st})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	ur, err = f.h.UpdateAppointment(authedCtx(did, model.RoleDoctor), &handler.UpdateAppointmentRequest{ID: a.ID, Status: &st})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", ur.Appointment.Status)

	back := "SCHEDULED"
	_, err = f.h.UpdateAppointment(authedCtx(did, model.RoleDoctor), &handler.UpdateAppointmentRequest{ID: a.ID, Status: &back})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestDeleteAppointment(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	ctx := authedCtx(pid, model.RolePatient)
	a := book(t, f.h, ctx, did, tue9)

	_, err := f.h.DeleteAppointment(ctx, &handler.DeleteAppointmentRequest{ID: a.ID})
	require.NoError(t, err)

	// soft delete: still readable, now cancelled
	gr, err := f.h.GetAppointment(ctx, &handler.GetAppointmentRequest{ID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", gr.Appointment.Status)

	_, err = f.h.DeleteAppointment(ctx, &handler.DeleteAppointmentRequest{ID: a.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGetStats(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	ctx := authedCtx(pid, model.RolePatient)
	a := book(t, f.h, ctx, did, tue9)
	book(t, f.h, ctx, did, tue9.Add(time.Hour))
	_, err := f.h.CancelAppointment(ctx, &handler.CancelAppointmentRequest{ID: a.ID})
	require.NoError(t, err)

	sr, err := f.h.GetStats(ctx, &handler.GetStatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, &handler.StatsResponse{Total: 2, Scheduled: 1, Cancelled: 1}, sr)

	_, err = f.h.GetStats(context.Background(), &handler.GetStatsRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGetAvailableSlots(t *testing.T) {
	f := setup(t)
	pid := registerUser(t, f.h, model.RolePatient)
	did := registerUser(t, f.h, model.RoleDoctor)
	ctx := authedCtx(pid, model.RolePatient)
	book(t, f.h, ctx, did, tue9)

	sr, err := f.h.GetAvailableSlots(ctx, &handler.GetAvailableSlotsRequest{DoctorID: did, Date: "2025-06-10"})
	require.NoError(t, err)
	assert.Len(t, sr.Slots, 19)
	for _, s := range sr.Slots {
		assert.False(t, s.Equal(tue9))
	}

	_, err = f.h.GetAvailableSlots(ctx, &handler.GetAvailableSlotsRequest{DoctorID: did})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = f.h.GetAvailableSlots(ctx, &handler.GetAvailableSlotsRequest{DoctorID: did, Date: "June 10"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = f.h.GetAvailableSlots(ctx, &handler.GetAvailableSlotsRequest{DoctorID: pid, Date: "2025-06-10"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

type brokenRepo struct {
	*memstore.Store
}

func (brokenRepo) Count(context.Context, scheduling.Filter) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	st := memstore.New()
	svc := scheduling.NewService(brokenRepo{st}, st, nil, clock.NewFixed(now), scheduling.DefaultHours(time.UTC))
	h := handler.New(svc, st, secret, zerolog.Nop())

	_, err := h.GetStats(authedCtx("P1", model.RolePatient), &handler.GetStatsRequest{})
	s := status.Convert(err)
	assert.Equal(t, codes.Internal, s.Code())
	assert.Equal(t, "internal error", s.Message())
}
