package attendance

import (
	"context"
	"time"
)

// SessionFilter scopes ListSessions. From is inclusive, To exclusive, both
// on scheduled_start.
type SessionFilter struct {
	LecturerID string
	CourseIDs  []string
	CourseID   string
	Status     SessionStatus
	From       *time.Time
	To         *time.Time
}

// RecordFilter scopes ListRecords. LecturerID keeps records of sessions
// that lecturer runs.
type RecordFilter struct {
	SessionID  string
	StudentID  string
	LecturerID string
}

// Store persists sessions and attendance records.
type Store interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	// Transition moves a session to status when its current status is one
	// of from. It fails with ErrSessionNotFound, or with a Conflict when the
	// session is in another state.
	Transition(ctx context.Context, id string, from []SessionStatus, to SessionStatus, at time.Time) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, f SessionFilter) ([]Session, error)
	// ExpiredActive returns active sessions whose scheduled end is before cutoff.
	ExpiredActive(ctx context.Context, cutoff time.Time) ([]Session, error)
	CountSessions(ctx context.Context, lecturerID string, status SessionStatus) (int, error)

	// InsertRecord relies on the (session, student) uniqueness constraint
	// and reports a violation as ErrAlreadyCheckedIn.
	InsertRecord(ctx context.Context, r Record) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)
	CountByStatus(ctx context.Context, sessionID string) (Breakdown, error)
	CountRecords(ctx context.Context, studentID string, status RecordStatus) (int, error)
	SaveStats(ctx context.Context, sessionID string, present int, percentage float64) error
	SetFaceResult(ctx context.Context, recordID string, verified bool, confidence *float64) error
}
