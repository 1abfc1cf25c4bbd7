package rbac

// Role names. Keep these stable; they are part of auth contracts.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
