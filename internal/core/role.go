package core

// Role is a closed, totally ordered permission level.
// Each role holds every permission of the roles below it.
type Role int

const (
	RoleNone Role = iota
	RoleOperator
	RoleAdmin
	RoleRoot
)

// AtLeast reports whether r grants everything need grants.
func (r Role) AtLeast(need Role) bool {
	return r >= need
}

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	default:
		return "none"
	}
}
