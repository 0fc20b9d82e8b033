package rbac

import (
	"fmt"
	"strings"
)

// GateQuery describes what an inline gate requires. Exactly one shape is
// expected: Permission, Permissions (with RequireAll), or Resource+Action.
// A query with none of them is unrestricted. A non-nil empty Permissions slice
// is a supplied query: it denies in any mode and grants with RequireAll, while
// a nil slice counts as absent.
type GateQuery struct {
	Permission  string
	Permissions []string
	RequireAll  bool
	Resource    Resource
	Action      Action
}

// Allows evaluates the query for user. Shapes are checked in declaration order.
func (q GateQuery) Allows(resolver *Resolver, user User) bool {
	switch {
	case q.Permission != "":
		return resolver.HasPermission(user, q.Permission)
	case q.Permissions != nil:
		if q.RequireAll {
			return resolver.HasAllPermissions(user, q.Permissions)
		}
		return resolver.HasAnyPermission(user, q.Permissions)
	case q.Resource != "" && q.Action != "":
		return resolver.CanAccess(user, q.Resource, q.Action)
	default:
		return true
	}
}

func (q GateQuery) String() string {
	switch {
	case q.Permission != "":
		return "permission=" + q.Permission
	case q.Permissions != nil:
		mode := "any"
		if q.RequireAll {
			mode = "all"
		}
		return fmt.Sprintf("permissions(%s)=%s", mode, strings.Join(q.Permissions, ","))
	case q.Resource != "" && q.Action != "":
		return fmt.Sprintf("access=%s:%s", q.Resource, q.Action)
	default:
		return "unrestricted"
	}
}
