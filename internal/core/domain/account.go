package domain

import (
	"strings"
	"time"
)

// Role is the closed set of roles an account can hold.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

// Roles lists every valid role. Adding a role means adding it here and to ParseRole.
var Roles = []Role{RoleClient, RoleAdmin}

// ParseRole converts s into a Role, reporting false for anything outside the enumeration.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient:
		return RoleClient, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }

// Account models one registered identity.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NormalizeEmail is applied to every email before it reaches the credential store,
// so uniqueness holds regardless of the casing a caller used.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
