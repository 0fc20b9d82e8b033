package users

import (
	"errors"
	"time"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

// ErrUnknownRole is returned when a role change names a role that is not registered.
var ErrUnknownRole = errors.New("users: unknown role")

// User represents a user account for management.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      rbac.RoleID
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows ListUsers.
type ListFilter struct {
	Role       rbac.RoleID
	ActiveOnly bool
}
