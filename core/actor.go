package core

import "strings"

// Roles
const (
	RoleStudent = "student:"

	// Manager (absence office)
	RoleManager          = "manager:"
	RoleManagerSecretary = "manager:secretary"
	RoleManagerDirector  = "manager:director"
)

// Actor is the authenticated caller of a use case.
// ID is the student identifier for students and the staff id for managers.
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsStudent() bool { return a.RoleStartsWith(RoleStudent) }
func (a Actor) IsManager() bool { return a.RoleStartsWith(RoleManager) }
