package course

import "context"

// Store persists courses and enrollments.
type Store interface {
	Create(ctx context.Context, c Course) (Course, error)
	Get(ctx context.Context, id string) (Course, error)
	Update(ctx context.Context, c Course) (Course, error)
	List(ctx context.Context, f Filter) ([]Course, error)
	// Count counts courses owned by lecturerID, or all when it is empty.
	Count(ctx context.Context, lecturerID string) (int, error)

	// Enroll inserts an active enrollment. It fails with ErrAlreadyEnrolled
	// when the pair exists and ErrCourseFull when max_students is reached.
	Enroll(ctx context.Context, e Enrollment) (Enrollment, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	CountEnrolled(ctx context.Context, courseID string) (int, error)
	Enrollments(ctx context.Context, courseID string) ([]Enrollment, error)
	EnrolledCourseIDs(ctx context.Context, studentID string) ([]string, error)
}
