package handler

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

func (h *Handler) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Date == "" {
		return nil, status.Error(codes.InvalidArgument, "date required")
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "date must be RFC 3339")
	}

	// callers book on their own side of the appointment only
	patientID, doctorID := req.PatientID, req.DoctorID
	switch c.Role {
	case model.RolePatient:
		if patientID != "" && patientID != c.ID {
			return nil, status.Error(codes.PermissionDenied, "patients can only book for themselves")
		}
		patientID = c.ID
	case model.RoleDoctor:
		if doctorID != "" && doctorID != c.ID {
			return nil, status.Error(codes.PermissionDenied, "doctors can only book into their own agenda")
		}
		doctorID = c.ID
	}
	if doctorID == "" || patientID == "" {
		return nil, status.Error(codes.InvalidArgument, "doctorId and patientId required")
	}

	a, err := h.svc.Create(ctx, patientID, doctorID, date, req.Notes)
	if err != nil {
		return nil, h.toStatus("create appointment", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	a, err := h.svc.Get(ctx, req.ID, c)
	if err != nil {
		return nil, h.toStatus("get appointment", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

func (h *Handler) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	from, err := parseBound(req.StartDate, false)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid startDate")
	}
	to, err := parseBound(req.EndDate, true)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid endDate")
	}

	res, err := h.svc.List(ctx, c, scheduling.ListFilter{
		Status:    model.Status(strings.ToUpper(req.Status)),
		StartDate: from,
		EndDate:   to,
		Page:      req.Page,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, h.toStatus("list appointments", err)
	}

	out := make([]*Appointment, len(res.Items))
	for i := range res.Items {
		out[i] = toMessage(&res.Items[i])
	}
	return &ListAppointmentsResponse{Items: out, Page: res.Page, Limit: res.Limit, Total: res.Total, Pages: res.Pages}, nil
}

func (h *Handler) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	a, err := h.svc.Cancel(ctx, req.ID, c, req.Reason)
	if err != nil {
		return nil, h.toStatus("cancel appointment", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

func (h *Handler) CompleteAppointment(ctx context.Context, req *CompleteAppointmentRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	a, err := h.svc.Complete(ctx, req.ID, c, req.Notes)
	if err != nil {
		return nil, h.toStatus("complete appointment", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

func (h *Handler) MarkNoShow(ctx context.Context, req *MarkNoShowRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	a, err := h.svc.MarkNoShow(ctx, req.ID, c)
	if err != nil {
		return nil, h.toStatus("mark no-show", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

func (h *Handler) UpdateAppointment(ctx context.Context, req *UpdateAppointmentRequest) (*AppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	in := scheduling.UpdateInput{Notes: req.Notes}
	if req.Status != nil {
		st := model.Status(strings.ToUpper(*req.Status))
		in.Status = &st
	}
	a, err := h.svc.Update(ctx, req.ID, c, in)
	if err != nil {
		return nil, h.toStatus("update appointment", err)
	}
	return &AppointmentResponse{Appointment: toMessage(a)}, nil
}

// DeleteAppointment cancels; records are never removed.
func (h *Handler) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	if err := h.svc.Remove(ctx, req.ID, c); err != nil {
		return nil, h.toStatus("delete appointment", err)
	}
	return &DeleteAppointmentResponse{}, nil
}

func (h *Handler) GetStats(ctx context.Context, _ *GetStatsRequest) (*StatsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	st, err := h.svc.Stats(ctx, c)
	if err != nil {
		return nil, h.toStatus("stats", err)
	}
	return &StatsResponse{
		Total:     st.Total,
		Scheduled: st.Scheduled,
		Completed: st.Completed,
		Cancelled: st.Cancelled,
		NoShow:    st.NoShow,
	}, nil
}

func (h *Handler) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	if req.DoctorID == "" || req.Date == "" {
		return nil, status.Error(codes.InvalidArgument, "doctorId and date required")
	}
	slots, err := h.svc.AvailableSlots(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, h.toStatus("available slots", err)
	}
	return &GetAvailableSlotsResponse{Slots: slots}, nil
}

// parseBound reads RFC 3339 or a bare day. A bare day used as an upper bound
// extends to the last instant of that day.
func parseBound(s string, upper bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
