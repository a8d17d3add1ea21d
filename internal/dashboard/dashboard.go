package dashboard

import (
	"context"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
	"studentattendance/internal/attendance"
)

// Users counts accounts.
type Users interface {
	Count(ctx context.Context, role access.Role) (int, error)
}

// Courses counts courses and enrollments.
type Courses interface {
	Count(ctx context.Context, lecturerID string) (int, error)
	EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

// Attendance counts sessions and records.
type Attendance interface {
	CountSessions(ctx context.Context, lecturerID string, status attendance.SessionStatus) (int, error)
	CountRecords(ctx context.Context, studentID string, status attendance.RecordStatus) (int, error)
}

// Stats maps a counter name to its value. The set of keys depends on the
// caller's role.
type Stats map[string]int

// Service computes read-only rollups on every call.
type Service struct {
	users      Users
	courses    Courses
	attendance Attendance
}

// NewService wires the aggregator.
func NewService(users Users, courses Courses, att Attendance) *Service {
	return &Service{users: users, courses: courses, attendance: att}
}

type counter struct {
	name  string
	count func() (int, error)
}

func collect(counters ...counter) (Stats, error) {
	out := make(Stats, len(counters))
	for _, c := range counters {
		n, err := c.count()
		if err != nil {
			return nil, err
		}
		out[c.name] = n
	}
	return out, nil
}

// Stats returns the counts for caller's role: global for admins, owned
// courses and sessions for lecturers, own enrollments and records for students.
func (s *Service) Stats(ctx context.Context, caller access.Caller) (Stats, error) {
	switch caller.Role {
	case access.Admin:
		return collect(
			counter{"total_users", func() (int, error) { return s.users.Count(ctx, "") }},
			counter{"total_students", func() (int, error) { return s.users.Count(ctx, access.Student) }},
			counter{"total_lecturers", func() (int, error) { return s.users.Count(ctx, access.Lecturer) }},
			counter{"total_courses", func() (int, error) { return s.courses.Count(ctx, "") }},
			counter{"active_sessions", func() (int, error) {
				return s.attendance.CountSessions(ctx, "", attendance.SessionActive)
			}},
		)
	case access.Lecturer:
		return collect(
			counter{"total_courses", func() (int, error) { return s.courses.Count(ctx, caller.ID) }},
			counter{"total_sessions", func() (int, error) { return s.attendance.CountSessions(ctx, caller.ID, "") }},
			counter{"active_sessions", func() (int, error) {
				return s.attendance.CountSessions(ctx, caller.ID, attendance.SessionActive)
			}},
		)
	case access.Student:
		return collect(
			counter{"enrolled_courses", func() (int, error) {
				ids, err := s.courses.EnrolledCourseIDs(ctx, caller.ID)
				return len(ids), err
			}},
			counter{"attendance_records", func() (int, error) { return s.attendance.CountRecords(ctx, caller.ID, "") }},
			counter{"present", func() (int, error) {
				return s.attendance.CountRecords(ctx, caller.ID, attendance.Present)
			}},
			counter{"late", func() (int, error) { return s.attendance.CountRecords(ctx, caller.ID, attendance.Late) }},
		)
	}
	return nil, apperr.New(apperr.Forbidden, "permission denied")
}
