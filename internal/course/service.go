package course

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

const (
	minCodeLen     = 3
	maxCodeLen     = 20
	defaultCredits = 3
	defaultRadius  = 100
)

// Service manages courses and self-service enrollment.
type Service struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService wires the course service.
func NewService(store Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// NormalizeCode trims and upper-cases a course code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateGeofence(lat, lng *float64, radius int) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return apperr.New(apperr.Validation, "Latitude must be between -90 and 90")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return apperr.New(apperr.Validation, "Longitude must be between -180 and 180")
	}
	if radius <= 0 {
		return apperr.New(apperr.Validation, "Geofence radius must be positive")
	}
	return nil
}

// Create adds a course owned by caller. Lecturers and admins only.
func (s *Service) Create(ctx context.Context, caller access.Caller, d Draft) (Course, error) {
	if err := access.Require(caller, access.Lecturer, access.Admin); err != nil {
		return Course{}, err
	}
	code := NormalizeCode(d.Code)
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return Course{}, apperr.Newf(apperr.Validation, "Course code must be %d-%d characters", minCodeLen, maxCodeLen)
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return Course{}, apperr.New(apperr.Validation, "Course name is required")
	}
	if d.Credits == 0 {
		d.Credits = defaultCredits
	}
	if d.Credits < 0 {
		return Course{}, apperr.New(apperr.Validation, "Credits must be positive")
	}
	if d.MaxStudents != nil && *d.MaxStudents <= 0 {
		return Course{}, apperr.New(apperr.Validation, "Max students must be positive")
	}
	if d.GeofenceRadius == 0 {
		d.GeofenceRadius = defaultRadius
	}
	if err := validateGeofence(d.GeofenceLatitude, d.GeofenceLongitude, d.GeofenceRadius); err != nil {
		return Course{}, err
	}

	c, err := s.store.Create(ctx, Course{
		Code:              code,
		Name:              name,
		Description:       d.Description,
		Credits:           d.Credits,
		LecturerID:        caller.ID,
		Status:            StatusActive,
		Semester:          d.Semester,
		AcademicYear:      d.AcademicYear,
		MaxStudents:       d.MaxStudents,
		GeofenceEnabled:   d.GeofenceEnabled,
		GeofenceLatitude:  d.GeofenceLatitude,
		GeofenceLongitude: d.GeofenceLongitude,
		GeofenceRadius:    d.GeofenceRadius,
	})
	if err != nil {
		return Course{}, err
	}
	s.log.WithFields(logrus.Fields{"course_id": c.ID, "code": c.Code, "lecturer_id": c.LecturerID}).Info("course created")
	return c, nil
}

// List returns the courses visible to caller: all for admins, owned
// courses for lecturers, actively enrolled courses for students.
func (s *Service) List(ctx context.Context, caller access.Caller) ([]Course, error) {
	switch caller.Role {
	case access.Admin:
		return s.store.List(ctx, Filter{})
	case access.Lecturer:
		return s.store.List(ctx, Filter{LecturerID: caller.ID})
	case access.Student:
		return s.store.List(ctx, Filter{StudentID: caller.ID})
	}
	return nil, apperr.New(apperr.Forbidden, "permission denied")
}

// Get returns a course if caller may see it.
func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (Course, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	switch {
	case caller.Is(access.Admin), c.LecturerID == caller.ID:
		return c, nil
	case caller.Is(access.Student):
		ok, err := s.store.IsEnrolled(ctx, id, caller.ID)
		if err != nil {
			return Course{}, err
		}
		if ok {
			return c, nil
		}
	}
	return Course{}, ErrNoAccess
}

// Owned loads a course and checks caller owns it or is an admin.
func (s *Service) Owned(ctx context.Context, caller access.Caller, id string) (Course, error) {
	if err := access.Require(caller, access.Lecturer, access.Admin); err != nil {
		return Course{}, err
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !caller.Is(access.Admin) && c.LecturerID != caller.ID {
		return Course{}, ErrNotOwner
	}
	return c, nil
}

// Update applies changes to a course owned by caller.
func (s *Service) Update(ctx context.Context, caller access.Caller, id string, ch Changes) (Course, error) {
	c, err := s.Owned(ctx, caller, id)
	if err != nil {
		return Course{}, err
	}
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return Course{}, apperr.New(apperr.Validation, "Course name is required")
		}
		c.Name = name
	}
	if ch.Description != nil {
		c.Description = ch.Description
	}
	if ch.Credits != nil {
		if *ch.Credits <= 0 {
			return Course{}, apperr.New(apperr.Validation, "Credits must be positive")
		}
		c.Credits = *ch.Credits
	}
	if ch.Semester != nil {
		c.Semester = ch.Semester
	}
	if ch.AcademicYear != nil {
		c.AcademicYear = ch.AcademicYear
	}
	if ch.MaxStudents != nil {
		if *ch.MaxStudents <= 0 {
			return Course{}, apperr.New(apperr.Validation, "Max students must be positive")
		}
		c.MaxStudents = ch.MaxStudents
	}
	if ch.Status != nil {
		if !ch.Status.Valid() {
			return Course{}, apperr.New(apperr.Validation, "Invalid course status")
		}
		c.Status = *ch.Status
	}
	if ch.GeofenceEnabled != nil {
		c.GeofenceEnabled = *ch.GeofenceEnabled
	}
	if ch.GeofenceLatitude != nil {
		c.GeofenceLatitude = ch.GeofenceLatitude
	}
	if ch.GeofenceLongitude != nil {
		c.GeofenceLongitude = ch.GeofenceLongitude
	}
	if ch.GeofenceRadius != nil {
		c.GeofenceRadius = *ch.GeofenceRadius
	}
	if err := validateGeofence(c.GeofenceLatitude, c.GeofenceLongitude, c.GeofenceRadius); err != nil {
		return Course{}, err
	}
	return s.store.Update(ctx, c)
}

// Enroll enrolls the calling student in an active course.
func (s *Service) Enroll(ctx context.Context, caller access.Caller, courseID string) (Enrollment, error) {
	if err := access.Require(caller, access.Student); err != nil {
		return Enrollment{}, err
	}
	c, err := s.store.Get(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if c.Status != StatusActive {
		return Enrollment{}, ErrNotActive
	}
	e, err := s.store.Enroll(ctx, Enrollment{
		CourseID:   c.ID,
		StudentID:  caller.ID,
		EnrolledAt: s.now().UTC(),
	})
	if err != nil {
		return Enrollment{}, err
	}
	s.log.WithFields(logrus.Fields{"course_id": c.ID, "student_id": caller.ID}).Info("student enrolled")
	return e, nil
}

// Students lists active enrollments of a course owned by caller.
func (s *Service) Students(ctx context.Context, caller access.Caller, courseID string) ([]Enrollment, error) {
	if _, err := s.Owned(ctx, caller, courseID); err != nil {
		return nil, err
	}
	return s.store.Enrollments(ctx, courseID)
}

// Lookup loads a course without a visibility check.
func (s *Service) Lookup(ctx context.Context, id string) (Course, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return s.store.IsEnrolled(ctx, courseID, studentID)
}

func (s *Service) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	return s.store.CountEnrolled(ctx, courseID)
}

func (s *Service) EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	return s.store.EnrolledCourseIDs(ctx, studentID)
}

// Count counts courses owned by lecturerID, or all when it is empty.
func (s *Service) Count(ctx context.Context, lecturerID string) (int, error) {
	return s.store.Count(ctx, lecturerID)
}
