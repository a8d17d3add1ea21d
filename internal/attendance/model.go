package attendance

import (
	"math"
	"time"

	"studentattendance/internal/apperr"
)

// SessionStatus is the lifecycle state of a class meeting.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// transitions lists the states each status may move to.
var transitions = map[SessionStatus][]SessionStatus{
	SessionScheduled: {SessionActive, SessionCancelled},
	SessionActive:    {SessionCompleted, SessionCancelled},
}

// sourcesOf returns the statuses from which to is reachable.
func sourcesOf(to SessionStatus) []SessionStatus {
	var from []SessionStatus
	for src, dsts := range transitions {
		for _, d := range dsts {
			if d == to {
				from = append(from, src)
			}
		}
	}
	return from
}

// RecordStatus classifies a student's attendance.
type RecordStatus string

const (
	Present RecordStatus = "present"
	Absent  RecordStatus = "absent"
	Late    RecordStatus = "late"
	Excused RecordStatus = "excused"
)

// Method is how a check-in was captured.
type Method string

const (
	MethodManual          Method = "manual"
	MethodFaceRecognition Method = "face_recognition"
	MethodQRCode          Method = "qr_code"
	MethodGeolocation     Method = "geolocation"
)

func (m Method) Valid() bool {
	switch m {
	case MethodManual, MethodFaceRecognition, MethodQRCode, MethodGeolocation:
		return true
	}
	return false
}

var (
	ErrSessionNotFound  = apperr.New(apperr.NotFound, "Session not found")
	ErrSessionNotActive = apperr.New(apperr.Conflict, "Session is not active")
	ErrNotEnrolled      = apperr.New(apperr.Forbidden, "Student is not enrolled in this course")
	ErrAlreadyCheckedIn = apperr.New(apperr.Conflict, "Already checked in to this session")
	ErrRecordNotFound   = apperr.New(apperr.NotFound, "Attendance record not found")
	ErrNotSessionOwner  = apperr.New(apperr.Forbidden, "You can only manage sessions of your own courses")
	ErrNoAccess         = apperr.New(apperr.Forbidden, "You do not have access to this session")
)

// Session is a scheduled class meeting of one course.
type Session struct {
	ID                     string        `db:"id" json:"id"`
	CourseID               string        `db:"course_id" json:"course_id"`
	LecturerID             string        `db:"lecturer_id" json:"lecturer_id"`
	Title                  string        `db:"title" json:"title"`
	SessionType            string        `db:"session_type" json:"session_type"`
	Description            *string       `db:"description" json:"description,omitempty"`
	LocationName           *string       `db:"location_name" json:"location_name,omitempty"`
	Latitude               *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude              *float64      `db:"longitude" json:"longitude,omitempty"`
	ScheduledStart         time.Time     `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd           time.Time     `db:"scheduled_end" json:"scheduled_end"`
	ActualStart            *time.Time    `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd              *time.Time    `db:"actual_end" json:"actual_end,omitempty"`
	Status                 SessionStatus `db:"status" json:"status"`
	GracePeriodMinutes     int           `db:"grace_period_minutes" json:"grace_period_minutes"`
	RequireGeofence        bool          `db:"require_geofence" json:"require_geofence"`
	RequireFaceRecognition bool          `db:"require_face_recognition" json:"require_face_recognition"`
	TotalEnrolled          int           `db:"total_enrolled" json:"total_enrolled"`
	TotalPresent           int           `db:"total_present" json:"total_present"`
	AttendancePercentage   float64       `db:"attendance_percentage" json:"attendance_percentage"`
	CreatedAt              time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time     `db:"updated_at" json:"updated_at"`
}

// GraceBoundary is the last instant a check-in counts as present.
func (s Session) GraceBoundary() time.Time {
	return s.ScheduledStart.Add(time.Duration(s.GracePeriodMinutes) * time.Minute)
}

// Record is one student's check-in to one session.
type Record struct {
	ID               string       `db:"id" json:"id"`
	SessionID        string       `db:"session_id" json:"session_id"`
	StudentID        string       `db:"student_id" json:"student_id"`
	Status           RecordStatus `db:"status" json:"status"`
	Method           Method       `db:"check_in_method" json:"check_in_method"`
	CheckInTime      time.Time    `db:"check_in_time" json:"check_in_time"`
	Latitude         *float64     `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64     `db:"longitude" json:"longitude,omitempty"`
	LocationVerified bool         `db:"location_verified" json:"location_verified"`
	ImageURL         *string      `db:"image_url" json:"image_url,omitempty"`
	FaceVerified     bool         `db:"face_verified" json:"face_verified"`
	FaceConfidence   *float64     `db:"face_confidence" json:"face_confidence,omitempty"`
	Notes            *string      `db:"notes" json:"notes,omitempty"`
	IPAddress        *string      `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent        *string      `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Breakdown counts records per status.
type Breakdown struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Excused int `json:"excused"`
}

// Attended is the number of records counted as attendance.
func (b Breakdown) Attended() int { return b.Present + b.Late }

// Stats is the derived attendance summary of a session.
type Stats struct {
	SessionID            string    `json:"session_id"`
	TotalEnrolled        int       `json:"total_enrolled"`
	TotalPresent         int       `json:"total_present"`
	AttendancePercentage float64   `json:"attendance_percentage"`
	Breakdown            Breakdown `json:"breakdown"`
}

// Classify returns Present when at is no later than the grace boundary
// and Late otherwise.
func Classify(at time.Time, s Session) RecordStatus {
	if at.After(s.GraceBoundary()) {
		return Late
	}
	return Present
}

// Percentage returns attended/enrolled*100 rounded to two decimals, and 0
// when nobody is enrolled.
func Percentage(attended, enrolled int) float64 {
	if enrolled <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(enrolled)*100*100) / 100
}
