package models

import (
	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User is session scoped: it exists only inside a signed token issued after a
// successful one-time code confirmation.
type User struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	Avatar   string    `json:"avatar"`
	Verified bool      `json:"verified"`
}

// userNamespace seeds deterministic user ids so a returning email keeps its enrollments.
var userNamespace = uuid.MustParse("6f1c2a4e-8a51-4d57-9a3b-6c2f0f1f5e11")

// UserIDForEmail derives the stable user id for an email address.
func UserIDForEmail(email string) uuid.UUID {
	return uuid.NewSHA1(userNamespace, []byte(email))
}
