package model

import "time"

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether the canonical flows allow no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Specialty    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Specialty: u.Specialty}
}

// UserSummary is the read-only projection joined onto appointments.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Specialty string `json:"specialty,omitempty"`
}

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	Date      time.Time
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// joined on read, never persisted
	Patient *UserSummary
	Doctor  *UserSummary
}

type Stats struct {
	Total     int
	Scheduled int
	Completed int
	Cancelled int
	NoShow    int
}
