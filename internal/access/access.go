package access

import "studentattendance/internal/apperr"

// Role gates which operations a caller may invoke.
type Role string

const (
	Student  Role = "student"
	Lecturer Role = "lecturer"
	Admin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Student, Lecturer, Admin:
		return true
	}
	return false
}

// Caller is the authenticated principal behind a request.
type Caller struct {
	ID    string
	Email string
	Role  Role
}

// Is reports whether the caller holds one of roles.
func (c Caller) Is(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Require fails with a Forbidden error unless the caller holds one of allowed.
func Require(c Caller, allowed ...Role) error {
	if c.Is(allowed...) {
		return nil
	}
	return apperr.New(apperr.Forbidden, forbiddenMessage(allowed))
}

func forbiddenMessage(allowed []Role) string {
	switch {
	case len(allowed) == 1 && allowed[0] == Student:
		return "only students can perform this action"
	case len(allowed) == 1 && allowed[0] == Admin:
		return "only admins can perform this action"
	case len(allowed) == 2 && containsRole(allowed, Lecturer) && containsRole(allowed, Admin):
		return "only lecturers and admins can perform this action"
	}
	return "permission denied"
}

func containsRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
