package dashboard

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
	"studentattendance/internal/attendance"
)

type fakeUsers map[access.Role]int

func (f fakeUsers) Count(_ context.Context, role access.Role) (int, error) {
	if role == "" {
		total := 0
		for _, n := range f {
			total += n
		}
		return total, nil
	}
	return f[role], nil
}

type fakeCourses struct {
	owned    map[string]int
	enrolled map[string][]string
	err      error
}

func (f fakeCourses) Count(_ context.Context, lecturerID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if lecturerID == "" {
		total := 0
		for _, n := range f.owned {
			total += n
		}
		return total, nil
	}
	return f.owned[lecturerID], nil
}

func (f fakeCourses) EnrolledCourseIDs(_ context.Context, studentID string) ([]string, error) {
	return f.enrolled[studentID], nil
}

type fakeAttendance struct{}

func (fakeAttendance) CountSessions(_ context.Context, lecturerID string, status attendance.SessionStatus) (int, error) {
	switch {
	case lecturerID == "" && status == attendance.SessionActive:
		return 4, nil
	case lecturerID == "lec" && status == "":
		return 7, nil
	case lecturerID == "lec" && status == attendance.SessionActive:
		return 1, nil
	}
	return 0, nil
}

func (fakeAttendance) CountRecords(_ context.Context, _ string, status attendance.RecordStatus) (int, error) {
	switch status {
	case attendance.Present:
		return 5, nil
	case attendance.Late:
		return 2, nil
	}
	return 8, nil
}

func TestStatsByRole(t *testing.T) {
	svc := NewService(
		fakeUsers{access.Student: 10, access.Lecturer: 3, access.Admin: 1},
		fakeCourses{owned: map[string]int{"lec": 2, "other": 4}, enrolled: map[string][]string{"stu": {"a", "b", "c"}}},
		fakeAttendance{},
	)
	ctx := context.Background()

	cases := []struct {
		caller access.Caller
		want   Stats
	}{
		{
			access.Caller{ID: "adm", Role: access.Admin},
			Stats{"total_users": 14, "total_students": 10, "total_lecturers": 3, "total_courses": 6, "active_sessions": 4},
		},
		{
			access.Caller{ID: "lec", Role: access.Lecturer},
			Stats{"total_courses": 2, "total_sessions": 7, "active_sessions": 1},
		},
		{
			access.Caller{ID: "stu", Role: access.Student},
			Stats{"enrolled_courses": 3, "attendance_records": 8, "present": 5, "late": 2},
		},
	}
	for _, tc := range cases {
		t.Run(string(tc.caller.Role), func(t *testing.T) {
			got, err := svc.Stats(ctx, tc.caller)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStatsErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(fakeUsers{}, fakeCourses{err: boom}, fakeAttendance{})

	_, err := svc.Stats(context.Background(), access.Caller{ID: "lec", Role: access.Lecturer})
	assert.Equal(t, boom, err)

	_, err = svc.Stats(context.Background(), access.Caller{})
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}
