package handler

import (
	"time"

	"clinic-scheduler/internal/model"
)

type Appointment struct {
	ID        string             `json:"id"`
	PatientID string             `json:"patientId"`
	DoctorID  string             `json:"doctorId"`
	Date      time.Time          `json:"date"`
	Status    string             `json:"status"`
	Notes     string             `json:"notes"`
	Patient   *model.UserSummary `json:"patient,omitempty"`
	Doctor    *model.UserSummary `json:"doctor,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Specialty string `json:"specialty,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// CreateAppointmentRequest takes Date as RFC 3339. PatientID defaults to the
// calling patient; DoctorID defaults to the calling doctor.
type CreateAppointmentRequest struct {
	PatientID string `json:"patientId,omitempty"`
	DoctorID  string `json:"doctorId,omitempty"`
	Date      string `json:"date"`
	Notes     string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type GetAppointmentRequest struct {
	ID string `json:"id"`
}

// ListAppointmentsRequest dates accept RFC 3339 or YYYY-MM-DD; a bare
// EndDate covers that whole day.
type ListAppointmentsRequest struct {
	Status    string `json:"status,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type ListAppointmentsResponse struct {
	Items []*Appointment `json:"items"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
	Pages int            `json:"pages"`
}

type CancelAppointmentRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type CompleteAppointmentRequest struct {
	ID    string `json:"id"`
	Notes string `json:"notes,omitempty"`
}

type MarkNoShowRequest struct {
	ID string `json:"id"`
}

type UpdateAppointmentRequest struct {
	ID     string  `json:"id"`
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type DeleteAppointmentRequest struct {
	ID string `json:"id"`
}

type DeleteAppointmentResponse struct{}

type GetStatsRequest struct{}

type StatsResponse struct {
	Total     int `json:"total"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"noShow"`
}

type GetAvailableSlotsRequest struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"` // YYYY-MM-DD
}

type GetAvailableSlotsResponse struct {
	Slots []time.Time `json:"slots"`
}

func toMessage(a *model.Appointment) *Appointment {
	return &Appointment{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date,
		Status:    string(a.Status),
		Notes:     a.Notes,
		Patient:   a.Patient,
		Doctor:    a.Doctor,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
