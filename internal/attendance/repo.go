package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"studentattendance/internal/apperr"
	"studentattendance/internal/store"
)

const sessionColumns = `s.id, s.course_id, s.lecturer_id, s.title, s.session_type, s.description,
	s.location_name, s.latitude, s.longitude, s.scheduled_start, s.scheduled_end, s.actual_start,
	s.actual_end, s.status, s.grace_period_minutes, s.require_geofence, s.require_face_recognition,
	s.total_enrolled, s.total_present, s.attendance_percentage, s.created_at, s.updated_at`

const recordColumns = `r.id, r.session_id, r.student_id, r.status, r.check_in_method, r.check_in_time,
	r.latitude, r.longitude, r.location_verified, r.image_url, r.face_verified, r.face_confidence,
	r.notes, r.ip_address, r.user_agent, r.created_at, r.updated_at`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession writes a new session.
func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SessionScheduled
	}
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO sessions (id, course_id, lecturer_id, title, session_type, description, location_name,
			latitude, longitude, scheduled_start, scheduled_end, status, grace_period_minutes,
			require_geofence, require_face_recognition, total_enrolled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at
	`, s.ID, s.CourseID, s.LecturerID, s.Title, s.SessionType, s.Description, s.LocationName,
		s.Latitude, s.Longitude, s.ScheduledStart, s.ScheduledEnd, string(s.Status), s.GracePeriodMinutes,
		s.RequireGeofence, s.RequireFaceRecognition, s.TotalEnrolled)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

// GetSession returns a single session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrSessionNotFound
	}
	var s Session
	if err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`, id); err != nil {
		if store.NoRows(err) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, errors.Wrap(err, "loading session")
	}
	return s, nil
}

// Transition updates status in one conditional statement so concurrent
// transitions cannot both win.
func (r *Repository) Transition(ctx context.Context, id string, from []SessionStatus, to SessionStatus, at time.Time) (Session, error) {
	current, err := r.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	states := make([]string, len(from))
	for i, f := range from {
		states[i] = string(f)
	}
	query, args, err := sqlx.In(`
		UPDATE sessions s
		SET status = ?,
			actual_start = CASE WHEN ? = 'active' THEN ? ELSE actual_start END,
			actual_end = CASE WHEN ? = 'completed' THEN ? ELSE actual_end END,
			updated_at = NOW()
		WHERE s.id = ? AND s.status IN (?)
		RETURNING `+sessionColumns,
		string(to), string(to), at, string(to), at, id, states)
	if err != nil {
		return Session{}, errors.Wrap(err, "building transition")
	}
	var s Session
	if err := r.db.GetContext(ctx, &s, r.db.Rebind(query), args...); err != nil {
		if store.NoRows(err) {
			return Session{}, illegalTransition(current.Status, to)
		}
		return Session{}, errors.Wrap(err, "updating session status")
	}
	return s, nil
}

func illegalTransition(from, to SessionStatus) error {
	return apperr.Newf(apperr.Conflict, "Cannot change session from %s to %s", from, to)
}

// DeleteSession removes a session and, by cascade, its records.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrSessionNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions returns sessions matching f, newest first.
func (r *Repository) ListSessions(ctx context.Context, f SessionFilter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE 1=1`
	var args []interface{}
	if f.LecturerID != "" {
		query += ` AND s.lecturer_id = ?`
		args = append(args, f.LecturerID)
	}
	if len(f.CourseIDs) > 0 {
		query += ` AND s.course_id IN (?)`
		args = append(args, f.CourseIDs)
	}
	if f.CourseID != "" {
		query += ` AND s.course_id = ?`
		args = append(args, f.CourseID)
	}
	if f.Status != "" {
		query += ` AND s.status = ?`
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		query += ` AND s.scheduled_start >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		query += ` AND s.scheduled_start < ?`
		args = append(args, *f.To)
	}
	query += ` ORDER BY s.scheduled_start DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building session query")
	}
	var out []Session
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	return out, nil
}

func (r *Repository) ExpiredActive(ctx context.Context, cutoff time.Time) ([]Session, error) {
	var out []Session
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+sessionColumns+` FROM sessions s
		WHERE s.status = 'active' AND s.scheduled_end < $1
		ORDER BY s.scheduled_end
	`, cutoff)
	return out, errors.Wrap(err, "listing expired sessions")
}

func (r *Repository) CountSessions(ctx context.Context, lecturerID string, status SessionStatus) (int, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE 1=1`
	var args []interface{}
	if lecturerID != "" {
		query += ` AND lecturer_id = ?`
		args = append(args, lecturerID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...)
	return n, errors.Wrap(err, "counting sessions")
}

// InsertRecord writes a check-in. There is no read-before-write: the
// unique constraint decides which of two concurrent check-ins wins.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, check_in_method, check_in_time,
			latitude, longitude, location_verified, image_url, notes, ip_address, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at
	`, rec.ID, rec.SessionID, rec.StudentID, string(rec.Status), string(rec.Method), rec.CheckInTime,
		rec.Latitude, rec.Longitude, rec.LocationVerified, rec.ImageURL, rec.Notes, rec.IPAddress, rec.UserAgent)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if _, ok := store.UniqueViolation(err); ok {
			return Record{}, ErrAlreadyCheckedIn
		}
		return Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (r *Repository) GetRecord(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrRecordNotFound
	}
	var rec Record
	if err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM attendance_records r WHERE r.id = $1`, id); err != nil {
		if store.NoRows(err) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, errors.Wrap(err, "loading attendance record")
	}
	return rec, nil
}

// ListRecords returns records matching f, latest check-in first.
func (r *Repository) ListRecords(ctx context.Context, f RecordFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records r`
	var args []interface{}
	if f.LecturerID != "" {
		query += ` JOIN sessions s ON s.id = r.session_id AND s.lecturer_id = ?`
		args = append(args, f.LecturerID)
	}
	query += ` WHERE 1=1`
	if f.SessionID != "" {
		query += ` AND r.session_id = ?`
		args = append(args, f.SessionID)
	}
	if f.StudentID != "" {
		query += ` AND r.student_id = ?`
		args = append(args, f.StudentID)
	}
	query += ` ORDER BY r.check_in_time DESC`

	var out []Record
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "listing attendance records")
	}
	return out, nil
}

func (r *Repository) CountByStatus(ctx context.Context, sessionID string) (Breakdown, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT status, COUNT(*) FROM attendance_records WHERE session_id = $1 GROUP BY status
	`, sessionID)
	if err != nil {
		return Breakdown{}, errors.Wrap(err, "counting records")
	}
	defer rows.Close()

	var b Breakdown
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Breakdown{}, errors.Wrap(err, "scanning record counts")
		}
		b.add(RecordStatus(status), n)
	}
	return b, errors.Wrap(rows.Err(), "iterating record counts")
}

func (b *Breakdown) add(status RecordStatus, n int) {
	switch status {
	case Present:
		b.Present += n
	case Late:
		b.Late += n
	case Absent:
		b.Absent += n
	case Excused:
		b.Excused += n
	}
}

func (r *Repository) CountRecords(ctx context.Context, studentID string, status RecordStatus) (int, error) {
	query := `SELECT COUNT(*) FROM attendance_records WHERE student_id = ?`
	args := []interface{}{studentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...)
	return n, errors.Wrap(err, "counting student records")
}

func (r *Repository) SaveStats(ctx context.Context, sessionID string, present int, percentage float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET total_present = $2, attendance_percentage = $3, updated_at = NOW()
		WHERE id = $1
	`, sessionID, present, percentage)
	return errors.Wrap(err, "saving session stats")
}

func (r *Repository) SetFaceResult(ctx context.Context, recordID string, verified bool, confidence *float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET face_verified = $2, face_confidence = $3, updated_at = NOW()
		WHERE id = $1
	`, recordID, verified, confidence)
	if err != nil {
		return errors.Wrap(err, "saving face result")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
