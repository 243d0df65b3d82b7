package entity

// Role labels understood by the authorization policy.
const (
	RoleUser              = "ROLE_USER"
	RolePlatformAdmin     = "ROLE_PLATFORM_ADMIN"
	RolePlatformManager   = "ROLE_PLATFORM_MANAGER"
	RolePlatformSupport   = "ROLE_PLATFORM_SUPPORT"
	RolePlatformAccountRO = "ROLE_PLATFORM_ACCOUNT_RO"
	RolePlatformAccountRW = "ROLE_PLATFORM_ACCOUNT_RW"
)

// PrivilegedRoles may only be assigned by a platform admin.
var PrivilegedRoles = []string{RolePlatformAdmin, RolePlatformManager, RolePlatformSupport}

// KnownRoles is every role label accepted on input.
var KnownRoles = []string{
	RoleUser,
	RolePlatformAdmin,
	RolePlatformManager,
	RolePlatformSupport,
	RolePlatformAccountRO,
	RolePlatformAccountRW,
}

func IsPrivileged(role string) bool {
	return contains(PrivilegedRoles, role)
}

// AnyPrivileged reports whether roles contains at least one privileged role.
func AnyPrivileged(roles []string) bool {
	for _, r := range roles {
		if IsPrivileged(r) {
			return true
		}
	}
	return false
}

func IsKnownRole(role string) bool {
	return contains(KnownRoles, role)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
