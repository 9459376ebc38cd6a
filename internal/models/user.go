package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles carried in caller credentials.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleAlumni  Role = "alumni"
	RoleStudent Role = "student"
)

// ParseRole normalizes a claim value. Unknown values yield "".
func ParseRole(raw string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleFaculty, RoleAlumni, RoleStudent:
		return r
	default:
		return ""
	}
}

// IsModerator reports whether the role may review and moderate content.
func (r Role) IsModerator() bool {
	return r == RoleAdmin || r == RoleFaculty
}

// User is the read model of the external identity directory.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:255" json:"fullName"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Role      Role      `gorm:"size:32;index" json:"role"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Caller is the identity decoded from a signed request credential.
// The zero value is an anonymous caller.
type Caller struct {
	UserID uint
	Role   Role
}

// Authenticated reports whether the caller presented a valid credential.
func (c Caller) Authenticated() bool {
	return c.UserID != 0
}

// IsModerator reports whether the caller holds a moderating role.
func (c Caller) IsModerator() bool {
	return c.Authenticated() && c.Role.IsModerator()
}
