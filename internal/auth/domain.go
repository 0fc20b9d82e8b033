package auth

import (
	"strconv"
	"time"

	"github.com/bankcrm/bankcrm/internal/rbac"
)

// User represents an authenticated CRM user.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         rbac.RoleID
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject returns the identity used for permission checks.
func (u User) Subject() rbac.User {
	return rbac.User{ID: strconv.FormatInt(u.ID, 10), Role: u.Role}
}
