package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studentattendance/internal/apperr"
)

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		allowed []Role
		wantErr bool
	}{
		{name: "student allowed", caller: Caller{Role: Student}, allowed: []Role{Student}},
		{name: "lecturer in set", caller: Caller{Role: Lecturer}, allowed: []Role{Lecturer, Admin}},
		{name: "admin in set", caller: Caller{Role: Admin}, allowed: []Role{Lecturer, Admin}},
		{name: "student rejected", caller: Caller{Role: Student}, allowed: []Role{Lecturer, Admin}, wantErr: true},
		{name: "empty role rejected", caller: Caller{}, allowed: []Role{Student}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(tt.caller, tt.allowed...)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.Forbidden))
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, Student.Valid())
	assert.True(t, Lecturer.Valid())
	assert.True(t, Admin.Valid())
	assert.False(t, Role("guest").Valid())
}
