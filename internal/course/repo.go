package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"studentattendance/internal/store"
)

const courseColumns = `c.id, c.course_code, c.course_name, c.description, c.credits, c.lecturer_id, c.status,
	c.semester, c.academic_year, c.max_students, c.geofence_enabled, c.geofence_latitude,
	c.geofence_longitude, c.geofence_radius, c.created_at, c.updated_at`

// Repository persists courses and enrollments in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, c Course) (Course, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO courses (id, course_code, course_name, description, credits, lecturer_id, status,
			semester, academic_year, max_students, geofence_enabled, geofence_latitude,
			geofence_longitude, geofence_radius)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at
	`, c.ID, c.Code, c.Name, c.Description, c.Credits, c.LecturerID, string(c.Status),
		c.Semester, c.AcademicYear, c.MaxStudents, c.GeofenceEnabled, c.GeofenceLatitude,
		c.GeofenceLongitude, c.GeofenceRadius)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		if _, ok := store.UniqueViolation(err); ok {
			return Course{}, ErrCodeExists
		}
		return Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Course{}, ErrNotFound
	}
	var c Course
	if err := r.db.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, id); err != nil {
		if store.NoRows(err) {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "loading course")
	}
	return c, nil
}

func (r *Repository) Update(ctx context.Context, c Course) (Course, error) {
	row := r.db.QueryRowxContext(ctx, `
		UPDATE courses
		SET course_name = $2, description = $3, credits = $4, status = $5, semester = $6,
			academic_year = $7, max_students = $8, geofence_enabled = $9, geofence_latitude = $10,
			geofence_longitude = $11, geofence_radius = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, c.Name, c.Description, c.Credits, string(c.Status), c.Semester,
		c.AcademicYear, c.MaxStudents, c.GeofenceEnabled, c.GeofenceLatitude,
		c.GeofenceLongitude, c.GeofenceRadius)
	if err := row.Scan(&c.UpdatedAt); err != nil {
		if store.NoRows(err) {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c`
	var args []interface{}
	if f.StudentID != "" {
		query += ` JOIN course_enrollments e ON e.course_id = c.id AND e.status = 'active' AND e.student_id = ?`
		args = append(args, f.StudentID)
	}
	query += ` WHERE 1=1`
	if f.LecturerID != "" {
		query += ` AND c.lecturer_id = ?`
		args = append(args, f.LecturerID)
	}
	query += ` ORDER BY c.course_code`

	var out []Course
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, lecturerID string) (int, error) {
	var n int
	var err error
	if lecturerID == "" {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM courses`)
	} else {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM courses WHERE lecturer_id = $1`, lecturerID)
	}
	return n, errors.Wrap(err, "counting courses")
}

// Enroll inserts an active enrollment. The course row is locked for the
// duration of the transaction so concurrent enrollments count capacity
// one at a time.
func (r *Repository) Enroll(ctx context.Context, e Enrollment) (Enrollment, error) {
	if _, err := uuid.Parse(e.CourseID); err != nil {
		return Enrollment{}, ErrNotFound
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	e.Status = EnrollmentActive

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "starting enrollment")
	}
	defer func() { _ = tx.Rollback() }()

	var capacity *int
	if err := tx.GetContext(ctx, &capacity, `SELECT max_students FROM courses WHERE id = $1 FOR UPDATE`, e.CourseID); err != nil {
		if store.NoRows(err) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, errors.Wrap(err, "locking course")
	}
	if capacity != nil {
		var active int
		if err := tx.GetContext(ctx, &active, `
			SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1 AND status = 'active'
		`, e.CourseID); err != nil {
			return Enrollment{}, errors.Wrap(err, "counting enrollments")
		}
		if active >= *capacity {
			return Enrollment{}, ErrCourseFull
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO course_enrollments (id, course_id, student_id, status, enrolled_at)
		VALUES ($1, $2, $3, 'active', $4)
	`, e.ID, e.CourseID, e.StudentID, e.EnrolledAt); err != nil {
		if _, ok := store.UniqueViolation(err); ok {
			return Enrollment{}, ErrAlreadyEnrolled
		}
		return Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	if err := tx.Commit(); err != nil {
		return Enrollment{}, errors.Wrap(err, "committing enrollment")
	}
	return e, nil
}

func (r *Repository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM course_enrollments
			WHERE course_id = $1 AND student_id = $2 AND status = 'active'
		)
	`, courseID, studentID)
	return ok, errors.Wrap(err, "checking enrollment")
}

func (r *Repository) CountEnrolled(ctx context.Context, courseID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1 AND status = 'active'`, courseID)
	return n, errors.Wrap(err, "counting enrollments")
}

func (r *Repository) Enrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	var out []Enrollment
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, course_id, student_id, status, enrolled_at
		FROM course_enrollments
		WHERE course_id = $1 AND status = 'active'
		ORDER BY enrolled_at
	`, courseID)
	return out, errors.Wrap(err, "listing enrollments")
}

func (r *Repository) EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT course_id FROM course_enrollments WHERE student_id = $1 AND status = 'active'`, studentID)
	return ids, errors.Wrap(err, "listing enrolled courses")
}
