package course

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pair struct{ course, student string }

// MemoryStore is an in-process Store with the Postgres uniqueness rules.
type MemoryStore struct {
	mu          sync.RWMutex
	courses     map[string]Course
	enrollments map[pair]Enrollment
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:     make(map[string]Course),
		enrollments: make(map[pair]Enrollment),
		now:         time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, c Course) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return Course{}, ErrCodeExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = m.now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.courses[c.ID] = c
	return c, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) Update(_ context.Context, c Course) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.courses[c.ID]
	if !ok {
		return Course{}, ErrNotFound
	}
	c.Code, c.LecturerID, c.CreatedAt = prev.Code, prev.LecturerID, prev.CreatedAt
	c.UpdatedAt = m.now().UTC()
	m.courses[c.ID] = c
	return c, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Course
	for _, c := range m.courses {
		if f.LecturerID != "" && c.LecturerID != f.LecturerID {
			continue
		}
		if f.StudentID != "" {
			e, ok := m.enrollments[pair{c.ID, f.StudentID}]
			if !ok || e.Status != EnrollmentActive {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context, lecturerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.courses {
		if lecturerID == "" || c.LecturerID == lecturerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) activeCount(courseID string) int {
	n := 0
	for k, e := range m.enrollments {
		if k.course == courseID && e.Status == EnrollmentActive {
			n++
		}
	}
	return n
}

func (m *MemoryStore) Enroll(_ context.Context, e Enrollment) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pair{e.CourseID, e.StudentID}
	if _, ok := m.enrollments[key]; ok {
		return Enrollment{}, ErrAlreadyEnrolled
	}
	if c, ok := m.courses[e.CourseID]; ok && c.MaxStudents != nil && m.activeCount(e.CourseID) >= *c.MaxStudents {
		return Enrollment{}, ErrCourseFull
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = m.now().UTC()
	}
	e.Status = EnrollmentActive
	m.enrollments[key] = e
	return e, nil
}

func (m *MemoryStore) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[pair{courseID, studentID}]
	return ok && e.Status == EnrollmentActive, nil
}

func (m *MemoryStore) CountEnrolled(_ context.Context, courseID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeCount(courseID), nil
}

func (m *MemoryStore) Enrollments(_ context.Context, courseID string) ([]Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Enrollment
	for k, e := range m.enrollments {
		if k.course == courseID && e.Status == EnrollmentActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

func (m *MemoryStore) EnrolledCourseIDs(_ context.Context, studentID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for k, e := range m.enrollments {
		if k.student == studentID && e.Status == EnrollmentActive {
			ids = append(ids, k.course)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
