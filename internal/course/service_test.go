package course

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

func newService() *Service {
	logger, _ := test.NewNullLogger()
	return NewService(NewMemoryStore(), logger)
}

func caller(role access.Role) access.Caller {
	return access.Caller{ID: uuid.NewString(), Email: string(role) + "@uni.test", Role: role}
}

func intPtr(n int) *int { return &n }

func TestCreateCourse(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	lecturer := caller(access.Lecturer)

	c, err := svc.Create(ctx, lecturer, Draft{Code: "  cs101 ", Name: "Intro to CS"})
	require.NoError(t, err)
	assert.Equal(t, "CS101", c.Code)
	assert.Equal(t, lecturer.ID, c.LecturerID)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, defaultCredits, c.Credits)
	assert.Equal(t, defaultRadius, c.GeofenceRadius)

	_, err = svc.Create(ctx, caller(access.Admin), Draft{Code: "CS101", Name: "Again"})
	assert.True(t, errors.Is(err, ErrCodeExists))
}

func TestCreateCourseRejects(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	lat := 91.0

	cases := []struct {
		name   string
		caller access.Caller
		draft  Draft
		kind   apperr.Kind
	}{
		{"student", caller(access.Student), Draft{Code: "CS101", Name: "X"}, apperr.Forbidden},
		{"short code", caller(access.Lecturer), Draft{Code: "ab", Name: "X"}, apperr.Validation},
		{"long code", caller(access.Lecturer), Draft{Code: "ABCDEFGHIJKLMNOPQRSTU", Name: "X"}, apperr.Validation},
		{"no name", caller(access.Lecturer), Draft{Code: "CS101"}, apperr.Validation},
		{"bad latitude", caller(access.Lecturer), Draft{Code: "CS101", Name: "X", GeofenceLatitude: &lat}, apperr.Validation},
		{"bad capacity", caller(access.Lecturer), Draft{Code: "CS101", Name: "X", MaxStudents: intPtr(0)}, apperr.Validation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.caller, tc.draft)
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestListIsRoleScoped(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	l1, l2 := caller(access.Lecturer), caller(access.Lecturer)
	student := caller(access.Student)

	a, err := svc.Create(ctx, l1, Draft{Code: "AAA100", Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, l2, Draft{Code: "BBB100", Name: "B"})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, student, a.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, caller(access.Admin))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := svc.List(ctx, l2)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "BBB100", own[0].Code)

	enrolled, err := svc.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, a.ID, enrolled[0].ID)

	none, err := svc.List(ctx, caller(access.Student))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEnrollRules(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	lecturer := caller(access.Lecturer)
	student := caller(access.Student)
	c, err := svc.Create(ctx, lecturer, Draft{Code: "CS101", Name: "Intro"})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, lecturer, c.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = svc.Enroll(ctx, student, uuid.NewString())
	assert.True(t, errors.Is(err, ErrNotFound))

	e, err := svc.Enroll(ctx, student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, EnrollmentActive, e.Status)

	_, err = svc.Enroll(ctx, student, c.ID)
	assert.True(t, errors.Is(err, ErrAlreadyEnrolled))

	inactive := StatusInactive
	_, err = svc.Update(ctx, lecturer, c.ID, Changes{Status: &inactive})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, caller(access.Student), c.ID)
	assert.True(t, errors.Is(err, ErrNotActive))
}

func TestEnrollCapacity(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, caller(access.Lecturer), Draft{Code: "CS101", Name: "Intro", MaxStudents: intPtr(2)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Enroll(ctx, caller(access.Student), c.ID)
		}(i)
	}
	wg.Wait()

	full := 0
	for _, err := range results {
		if errors.Is(err, ErrCourseFull) {
			full++
		}
	}
	assert.Equal(t, 3, full)
	n, err := svc.CountEnrolled(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetVisibility(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := caller(access.Lecturer)
	student := caller(access.Student)
	c, err := svc.Create(ctx, owner, Draft{Code: "CS101", Name: "Intro"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, owner, c.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, caller(access.Admin), c.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, caller(access.Lecturer), c.ID)
	assert.True(t, errors.Is(err, ErrNoAccess))
	_, err = svc.Get(ctx, student, c.ID)
	assert.True(t, errors.Is(err, ErrNoAccess))

	_, err = svc.Enroll(ctx, student, c.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, student, c.ID)
	assert.NoError(t, err)
}

func TestUpdateAndStudents(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := caller(access.Lecturer)
	c, err := svc.Create(ctx, owner, Draft{Code: "CS101", Name: "Intro"})
	require.NoError(t, err)

	name := "Introduction to Computing"
	_, err = svc.Update(ctx, caller(access.Lecturer), c.ID, Changes{Name: &name})
	assert.True(t, errors.Is(err, ErrNotOwner))

	updated, err := svc.Update(ctx, owner, c.ID, Changes{Name: &name, Credits: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, 4, updated.Credits)
	assert.Equal(t, "CS101", updated.Code)

	s1, s2 := caller(access.Student), caller(access.Student)
	for _, s := range []access.Caller{s1, s2} {
		_, err := svc.Enroll(ctx, s, c.ID)
		require.NoError(t, err)
	}
	students, err := svc.Students(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	_, err = svc.Students(ctx, s1, c.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	ids, err := svc.EnrolledCourseIDs(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)

	count, err := svc.Count(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
