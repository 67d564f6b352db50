package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/session"
)

func sess(role string) *session.Session {
	return &session.Session{DisplayName: "Dana", Role: role, Credential: "tok"}
}

func TestGate_DefaultPolicy(t *testing.T) {
	gate, err := NewGate(nil)
	require.NoError(t, err)

	tests := []struct {
		role   string
		action string
		want   bool
	}{
		{RoleAdmin, TimetableReview, true},
		{RoleAdmin, TimetableSelect, true},
		{RoleCoordinator, TimetableReview, true},
		{RoleCoordinator, ScheduleSubmit, true},
		{RoleFaculty, ScheduleSubmit, true},
		{RoleFaculty, TimetableRead, true},
		{RoleFaculty, TimetableReview, false},
		{"student", ScheduleSubmit, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Allow(sess(tt.role), tt.action))
		})
	}
}

func TestGate_UnresolvedRoleIsDenied(t *testing.T) {
	gate, err := NewGate(map[string][]string{RoleAdmin: {AllWildcard}})
	require.NoError(t, err)

	assert.False(t, gate.Allow(nil, ScheduleSubmit))
	assert.False(t, gate.Allow(sess(""), ScheduleSubmit))
	assert.False(t, gate.Allow(sess("   "), ScheduleSubmit))
	assert.Empty(t, gate.Actions(sess("")))
}

func TestGate_RejectsEmptyRoleInPolicy(t *testing.T) {
	_, err := NewGate(map[string][]string{"": {AllWildcard}})
	assert.Error(t, err)
}

func TestGate_Actions(t *testing.T) {
	gate, err := NewGate(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{ScheduleSubmit, TimetableRead}, gate.Actions(sess(RoleFaculty)))
	assert.Len(t, gate.Actions(sess(RoleAdmin)), 4)
}

func TestValidAction(t *testing.T) {
	assert.True(t, ValidAction(TimetableSelect))
	assert.False(t, ValidAction("timetable:delete"))
}
