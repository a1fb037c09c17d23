package scheduling

import "clinic-scheduler/internal/model"

// Caller identifies who invokes an operation. Build it with Patient or Doctor.
type Caller struct {
	ID   string
	Role model.Role
}

func Patient(id string) Caller { return Caller{ID: id, Role: model.RolePatient} }

func Doctor(id string) Caller { return Caller{ID: id, Role: model.RoleDoctor} }

func NewCaller(id string, role model.Role) (Caller, error) {
	if id == "" {
		return Caller{}, badRequest("caller id required")
	}
	if !role.Valid() {
		return Caller{}, badRequest("unknown role %q", role)
	}
	return Caller{ID: id, Role: role}, nil
}

func (c Caller) IsDoctor() bool { return c.Role == model.RoleDoctor }

// Owns reports whether c is the patient or the doctor of a, matched on the
// side given by c's role.
func (c Caller) Owns(a *model.Appointment) bool {
	switch c.Role {
	case model.RolePatient:
		return a.PatientID == c.ID
	case model.RoleDoctor:
		return a.DoctorID == c.ID
	}
	return false
}

// scope narrows a filter to the caller's own appointments.
func (c Caller) scope(f Filter) Filter {
	if c.Role == model.RoleDoctor {
		f.DoctorID = c.ID
		f.PatientID = ""
	} else {
		f.PatientID = c.ID
		f.DoctorID = ""
	}
	return f
}
