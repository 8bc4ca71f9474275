package auth

// Role is the server-verified marketplace role of a user. It is persisted on
// the user record and embedded into every issued token.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleBroker Role = "broker"
)

// DefaultRole is assigned on registration when none is requested.
const DefaultRole = RoleBuyer

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleBuyer, RoleSeller, RoleBroker:
		return r, true
	}
	return "", false
}
