package authz

// Actions checked against the signed-in role.
const (
	// ScheduleSubmit allows submitting scheduling parameters
	ScheduleSubmit = "schedule:submit"

	// TimetableRead allows listing timetables pending review
	TimetableRead = "timetable:read"

	// TimetableReview allows approving or rejecting a timetable
	TimetableReview = "timetable:review"

	// TimetableSelect allows selecting the timetable to publish
	TimetableSelect = "timetable:select"

	// AllWildcard grants all actions
	AllWildcard = "*"
)

// Roles a profile document may carry.
const (
	RoleAdmin       = "admin"
	RoleFaculty     = "faculty"
	RoleCoordinator = "coordinator"
)

// DefaultPolicy maps each role to the actions it is granted. Actions may use
// a trailing "*".
var DefaultPolicy = map[string][]string{
	RoleAdmin:       {AllWildcard},
	RoleCoordinator: {"schedule:*", "timetable:*"},
	RoleFaculty:     {ScheduleSubmit, TimetableRead},
}

// ValidAction reports whether action is a known action.
func ValidAction(action string) bool {
	switch action {
	case ScheduleSubmit, TimetableRead, TimetableReview, TimetableSelect:
		return true
	}
	return false
}
