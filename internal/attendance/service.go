package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
	"studentattendance/internal/course"
	"studentattendance/internal/queue"
)

const (
	defaultSessionType = "lecture"
	maxDurationMinutes = 24 * 60
)

// Courses is the slice of the course service the engine depends on.
type Courses interface {
	Lookup(ctx context.Context, id string) (course.Course, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	CountEnrolled(ctx context.Context, courseID string) (int, error)
	EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

// Publisher hands committed check-ins to background workers.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Recorder counts check-in outcomes.
type Recorder interface {
	CheckedIn(status string)
	Rejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) CheckedIn(string) {}
func (nopRecorder) Rejected(string)  {}

// Options tunes the engine.
type Options struct {
	DefaultGraceMinutes int
	Events              Publisher
	Metrics             Recorder
}

// Draft is the input to CreateSession.
type Draft struct {
	CourseID               string
	Title                  string
	SessionType            string
	Description            *string
	LocationName           *string
	Latitude               *float64
	Longitude              *float64
	ScheduledStart         time.Time
	DurationMinutes        int
	GracePeriodMinutes     *int
	RequireGeofence        bool
	RequireFaceRecognition bool
}

// CheckInRequest is the input to CheckIn. StudentID is only read for
// lecturer or admin assisted check-ins.
type CheckInRequest struct {
	SessionID string
	StudentID string
	Method    Method
	Latitude  *float64
	Longitude *float64
	ImageURL  *string
	Notes     *string
	IPAddress string
	UserAgent string
}

// SessionQuery holds the caller-supplied session filters.
type SessionQuery struct {
	CourseID string
	From     *time.Time
	To       *time.Time
}

// RecordQuery holds the caller-supplied record filters.
type RecordQuery struct {
	SessionID string
	StudentID string
}

// Service coordinates sessions, check-ins and statistics.
type Service struct {
	store        Store
	courses      Courses
	events       Publisher
	metrics      Recorder
	log          logrus.FieldLogger
	defaultGrace int
	now          func() time.Time
}

// NewService creates the attendance engine.
func NewService(store Store, courses Courses, log logrus.FieldLogger, opts Options) *Service {
	if opts.DefaultGraceMinutes < 0 {
		opts.DefaultGraceMinutes = 0
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	return &Service{
		store:        store,
		courses:      courses,
		events:       opts.Events,
		metrics:      opts.Metrics,
		log:          log,
		defaultGrace: opts.DefaultGraceMinutes,
		now:          time.Now,
	}
}

func validateDraft(d Draft) error {
	switch {
	case strings.TrimSpace(d.CourseID) == "":
		return apperr.New(apperr.Validation, "course_id is required")
	case strings.TrimSpace(d.Title) == "":
		return apperr.New(apperr.Validation, "Title is required")
	case d.ScheduledStart.IsZero():
		return apperr.New(apperr.Validation, "scheduled_start is required")
	case d.DurationMinutes <= 0 || d.DurationMinutes > maxDurationMinutes:
		return apperr.Newf(apperr.Validation, "Duration must be between 1 and %d minutes", maxDurationMinutes)
	case d.GracePeriodMinutes != nil && *d.GracePeriodMinutes < 0:
		return apperr.New(apperr.Validation, "Grace period cannot be negative")
	case d.Latitude != nil && (*d.Latitude < -90 || *d.Latitude > 90):
		return apperr.New(apperr.Validation, "Latitude must be between -90 and 90")
	case d.Longitude != nil && (*d.Longitude < -180 || *d.Longitude > 180):
		return apperr.New(apperr.Validation, "Longitude must be between -180 and 180")
	}
	return nil
}

// CreateSession schedules a class meeting of a course the caller owns.
// total_enrolled is a snapshot of active enrollments taken now.
func (s *Service) CreateSession(ctx context.Context, caller access.Caller, d Draft) (Session, error) {
	if err := access.Require(caller, access.Lecturer, access.Admin); err != nil {
		return Session{}, err
	}
	if err := validateDraft(d); err != nil {
		return Session{}, err
	}
	c, err := s.courses.Lookup(ctx, d.CourseID)
	if err != nil {
		return Session{}, err
	}
	if !caller.Is(access.Admin) && c.LecturerID != caller.ID {
		return Session{}, ErrNotSessionOwner
	}
	enrolled, err := s.courses.CountEnrolled(ctx, c.ID)
	if err != nil {
		return Session{}, err
	}

	grace := s.defaultGrace
	if d.GracePeriodMinutes != nil {
		grace = *d.GracePeriodMinutes
	}
	kind := strings.TrimSpace(d.SessionType)
	if kind == "" {
		kind = defaultSessionType
	}
	start := d.ScheduledStart.UTC()

	sess, err := s.store.CreateSession(ctx, Session{
		CourseID:               c.ID,
		LecturerID:             c.LecturerID,
		Title:                  strings.TrimSpace(d.Title),
		SessionType:            kind,
		Description:            d.Description,
		LocationName:           d.LocationName,
		Latitude:               d.Latitude,
		Longitude:              d.Longitude,
		ScheduledStart:         start,
		ScheduledEnd:           start.Add(time.Duration(d.DurationMinutes) * time.Minute),
		Status:                 SessionScheduled,
		GracePeriodMinutes:     grace,
		RequireGeofence:        d.RequireGeofence,
		RequireFaceRecognition: d.RequireFaceRecognition,
		TotalEnrolled:          enrolled,
	})
	if err != nil {
		return Session{}, err
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID, "course_id": c.ID, "total_enrolled": enrolled,
	}).Info("session created")
	return sess, nil
}

// owned loads a session the caller may manage.
func (s *Service) owned(ctx context.Context, caller access.Caller, id string) (Session, error) {
	if err := access.Require(caller, access.Lecturer, access.Admin); err != nil {
		return Session{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !caller.Is(access.Admin) && sess.LecturerID != caller.ID {
		return Session{}, ErrNotSessionOwner
	}
	return sess, nil
}

func (s *Service) transition(ctx context.Context, caller access.Caller, id string, to SessionStatus) (Session, error) {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return Session{}, err
	}
	sess, err := s.store.Transition(ctx, id, sourcesOf(to), to, s.now().UTC())
	if err != nil {
		return Session{}, err
	}
	s.log.WithFields(logrus.Fields{"session_id": id, "status": to, "by": caller.ID}).Info("session status changed")
	return sess, nil
}

// Start opens a scheduled session for check-ins.
func (s *Service) Start(ctx context.Context, caller access.Caller, id string) (Session, error) {
	return s.transition(ctx, caller, id, SessionActive)
}

// Complete closes an active session.
func (s *Service) Complete(ctx context.Context, caller access.Caller, id string) (Session, error) {
	return s.transition(ctx, caller, id, SessionCompleted)
}

// Cancel cancels a scheduled or active session.
func (s *Service) Cancel(ctx context.Context, caller access.Caller, id string) (Session, error) {
	return s.transition(ctx, caller, id, SessionCancelled)
}

// DeleteSession removes a session and its records.
func (s *Service) DeleteSession(ctx context.Context, caller access.Caller, id string) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, id)
}

// GetSession returns a session visible to caller.
func (s *Service) GetSession(ctx context.Context, caller access.Caller, id string) (Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := s.canView(ctx, caller, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) canView(ctx context.Context, caller access.Caller, sess Session) error {
	switch caller.Role {
	case access.Admin:
		return nil
	case access.Lecturer:
		if sess.LecturerID == caller.ID {
			return nil
		}
	case access.Student:
		ok, err := s.courses.IsEnrolled(ctx, sess.CourseID, caller.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrNoAccess
}

// ListSessions returns the sessions visible to caller, newest first.
func (s *Service) ListSessions(ctx context.Context, caller access.Caller, q SessionQuery) ([]Session, error) {
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return nil, apperr.New(apperr.Validation, "date_from must be before date_to")
	}
	if err := checkID("course_id", q.CourseID); err != nil {
		return nil, err
	}
	f := SessionFilter{CourseID: q.CourseID, From: q.From, To: q.To}
	switch caller.Role {
	case access.Admin:
	case access.Lecturer:
		f.LecturerID = caller.ID
	case access.Student:
		ids, err := s.courses.EnrolledCourseIDs(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Session{}, nil
		}
		f.CourseIDs = ids
	default:
		return nil, apperr.New(apperr.Forbidden, "permission denied")
	}
	return s.store.ListSessions(ctx, f)
}

// CheckIn records attendance for an active session. The classification is
// present up to scheduled start plus the grace period and late after it.
func (s *Service) CheckIn(ctx context.Context, caller access.Caller, req CheckInRequest) (Record, error) {
	rec, err := s.checkIn(ctx, caller, req)
	if err != nil {
		s.metrics.Rejected(rejectReason(err))
		return Record{}, err
	}
	s.metrics.CheckedIn(string(rec.Status))
	return rec, nil
}

func (s *Service) checkIn(ctx context.Context, caller access.Caller, req CheckInRequest) (Record, error) {
	method := req.Method
	if method == "" {
		method = MethodManual
	}
	if !method.Valid() {
		return Record{}, apperr.New(apperr.Validation, "Invalid check-in method")
	}

	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return Record{}, err
	}
	if sess.Status != SessionActive {
		return Record{}, ErrSessionNotActive
	}

	studentID, err := s.resolveStudent(caller, sess, req.StudentID)
	if err != nil {
		return Record{}, err
	}
	enrolled, err := s.courses.IsEnrolled(ctx, sess.CourseID, studentID)
	if err != nil {
		return Record{}, err
	}
	if !enrolled {
		return Record{}, ErrNotEnrolled
	}

	now := s.now().UTC()
	rec, err := s.store.InsertRecord(ctx, Record{
		SessionID:   sess.ID,
		StudentID:   studentID,
		Status:      Classify(now, sess),
		Method:      method,
		CheckInTime: now,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		ImageURL:    req.ImageURL,
		Notes:       req.Notes,
		IPAddress:   optional(req.IPAddress),
		UserAgent:   optional(req.UserAgent),
	})
	if err != nil {
		return Record{}, err
	}

	log := s.log.WithFields(logrus.Fields{
		"session_id": sess.ID, "student_id": studentID, "record_id": rec.ID, "status": rec.Status,
	})
	log.Info("checked in")

	// The record is committed; what follows must not fail the check-in.
	if _, err := s.RecomputeStats(ctx, sess.ID); err != nil {
		log.WithError(err).Warn("recomputing session stats failed")
	}
	s.publish(ctx, log, sess, rec)
	return rec, nil
}

func (s *Service) resolveStudent(caller access.Caller, sess Session, requested string) (string, error) {
	switch caller.Role {
	case access.Student:
		return caller.ID, nil
	case access.Lecturer, access.Admin:
		if strings.TrimSpace(requested) == "" {
			return "", apperr.New(apperr.Validation, "student_id is required for assisted check-in")
		}
		if err := checkID("student_id", requested); err != nil {
			return "", err
		}
		if caller.Is(access.Lecturer) && sess.LecturerID != caller.ID {
			return "", ErrNotSessionOwner
		}
		return requested, nil
	}
	return "", apperr.New(apperr.Forbidden, "permission denied")
}

func (s *Service) publish(ctx context.Context, log logrus.FieldLogger, sess Session, rec Record) {
	if s.events == nil {
		return
	}
	evt := queue.CheckIn{
		RecordID:    rec.ID,
		SessionID:   sess.ID,
		StudentID:   rec.StudentID,
		RequireFace: sess.RequireFaceRecognition,
	}
	if rec.ImageURL != nil {
		evt.ImageURL = *rec.ImageURL
	}
	msg, err := queue.NewCheckIn(evt)
	if err == nil {
		err = s.events.Publish(ctx, msg)
	}
	if err != nil {
		log.WithError(err).Warn("publishing checkin event failed")
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "already_checked_in"
	}
	return apperr.KindOf(err).String()
}

// checkID rejects a non-empty value that is not a UUID.
func checkID(name, v string) error {
	if v == "" {
		return nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return apperr.Newf(apperr.Validation, "Invalid %s", name)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ListRecords returns the records visible to caller. Students only ever
// see their own records; the student filter applies to lecturers and admins.
func (s *Service) ListRecords(ctx context.Context, caller access.Caller, q RecordQuery) ([]Record, error) {
	if err := checkID("session_id", q.SessionID); err != nil {
		return nil, err
	}
	f := RecordFilter{SessionID: q.SessionID}
	switch caller.Role {
	case access.Student:
		f.StudentID = caller.ID
	case access.Lecturer, access.Admin:
		if err := checkID("student_id", q.StudentID); err != nil {
			return nil, err
		}
		f.StudentID = q.StudentID
		if caller.Role == access.Lecturer {
			f.LecturerID = caller.ID
		}
	default:
		return nil, apperr.New(apperr.Forbidden, "permission denied")
	}
	return s.store.ListRecords(ctx, f)
}

func (s *Service) stats(ctx context.Context, sess Session) (Stats, error) {
	b, err := s.store.CountByStatus(ctx, sess.ID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		SessionID:            sess.ID,
		TotalEnrolled:        sess.TotalEnrolled,
		TotalPresent:         b.Attended(),
		AttendancePercentage: Percentage(b.Attended(), sess.TotalEnrolled),
		Breakdown:            b,
	}, nil
}

// RecomputeStats recounts a session's records and stores the result.
func (s *Service) RecomputeStats(ctx context.Context, sessionID string) (Stats, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	st, err := s.stats(ctx, sess)
	if err != nil {
		return Stats{}, err
	}
	if err := s.store.SaveStats(ctx, sess.ID, st.TotalPresent, st.AttendancePercentage); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Stats returns live statistics of a session visible to caller.
func (s *Service) Stats(ctx context.Context, caller access.Caller, id string) (Stats, error) {
	sess, err := s.GetSession(ctx, caller, id)
	if err != nil {
		return Stats{}, err
	}
	return s.stats(ctx, sess)
}

// CompleteExpired completes active sessions whose scheduled end lies more
// than after in the past. It returns how many were completed.
func (s *Service) CompleteExpired(ctx context.Context, after time.Duration) (int, error) {
	now := s.now().UTC()
	expired, err := s.store.ExpiredActive(ctx, now.Add(-after))
	if err != nil {
		return 0, err
	}
	done := 0
	for _, sess := range expired {
		if _, err := s.store.Transition(ctx, sess.ID, []SessionStatus{SessionActive}, SessionCompleted, now); err != nil {
			if apperr.Is(err, apperr.Conflict) || errors.Is(err, ErrSessionNotFound) {
				continue
			}
			return done, err
		}
		done++
		s.log.WithField("session_id", sess.ID).Info("session auto-completed")
	}
	return done, nil
}

// Record returns a record by id without a visibility check.
func (s *Service) Record(ctx context.Context, id string) (Record, error) {
	return s.store.GetRecord(ctx, id)
}

// ApplyFaceResult stores the outcome of face verification for a record.
func (s *Service) ApplyFaceResult(ctx context.Context, recordID string, verified bool, confidence float64) error {
	return s.store.SetFaceResult(ctx, recordID, verified, &confidence)
}

// CountSessions counts sessions run by lecturerID (all when empty) in status (any when empty).
func (s *Service) CountSessions(ctx context.Context, lecturerID string, status SessionStatus) (int, error) {
	return s.store.CountSessions(ctx, lecturerID, status)
}

// CountRecords counts a student's records in status (any when empty).
func (s *Service) CountRecords(ctx context.Context, studentID string, status RecordStatus) (int, error) {
	return s.store.CountRecords(ctx, studentID, status)
}
