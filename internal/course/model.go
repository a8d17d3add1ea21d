package course

import (
	"time"

	"studentattendance/internal/apperr"
)

// Status is the course lifecycle state. Only active courses accept enrollments.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// EnrollmentStatus is the state of a student-course link.
type EnrollmentStatus string

const (
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentDropped EnrollmentStatus = "dropped"
)

var (
	ErrNotFound        = apperr.New(apperr.NotFound, "Course not found")
	ErrCodeExists      = apperr.New(apperr.Conflict, "Course code already exists")
	ErrNotActive       = apperr.New(apperr.Conflict, "Course is not active")
	ErrAlreadyEnrolled = apperr.New(apperr.Conflict, "Already enrolled in this course")
	ErrCourseFull      = apperr.New(apperr.Conflict, "Course is full")
	ErrNotOwner        = apperr.New(apperr.Forbidden, "You can only manage your own courses")
	ErrNoAccess        = apperr.New(apperr.Forbidden, "You do not have access to this course")
)

// Course is a lecturer-owned class. The geofence is stored as metadata.
type Course struct {
	ID                string    `db:"id" json:"id"`
	Code              string    `db:"course_code" json:"course_code"`
	Name              string    `db:"course_name" json:"course_name"`
	Description       *string   `db:"description" json:"description,omitempty"`
	Credits           int       `db:"credits" json:"credits"`
	LecturerID        string    `db:"lecturer_id" json:"lecturer_id"`
	Status            Status    `db:"status" json:"status"`
	Semester          *string   `db:"semester" json:"semester,omitempty"`
	AcademicYear      *string   `db:"academic_year" json:"academic_year,omitempty"`
	MaxStudents       *int      `db:"max_students" json:"max_students,omitempty"`
	GeofenceEnabled   bool      `db:"geofence_enabled" json:"geofence_enabled"`
	GeofenceLatitude  *float64  `db:"geofence_latitude" json:"geofence_latitude,omitempty"`
	GeofenceLongitude *float64  `db:"geofence_longitude" json:"geofence_longitude,omitempty"`
	GeofenceRadius    int       `db:"geofence_radius" json:"geofence_radius"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment links one student to one course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// Draft is the input to Create.
type Draft struct {
	Code              string
	Name              string
	Description       *string
	Credits           int
	Semester          *string
	AcademicYear      *string
	MaxStudents       *int
	GeofenceEnabled   bool
	GeofenceLatitude  *float64
	GeofenceLongitude *float64
	GeofenceRadius    int
}

// Changes is the input to Update. Nil fields are left unchanged.
type Changes struct {
	Name              *string
	Description       *string
	Credits           *int
	Semester          *string
	AcademicYear      *string
	MaxStudents       *int
	Status            *Status
	GeofenceEnabled   *bool
	GeofenceLatitude  *float64
	GeofenceLongitude *float64
	GeofenceRadius    *int
}

// Filter scopes List. LecturerID keeps owned courses, StudentID keeps
// courses the student is actively enrolled in.
type Filter struct {
	LecturerID string
	StudentID  string
}
