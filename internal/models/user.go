package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleUser       UserRole = "USER"
)

// User is the read-only projection of the users table.
type User struct {
	Email           string  `db:"email" json:"email"`
	FullName        string  `db:"full_name" json:"full_name"`
	AdmissionNumber *string `db:"admission_number" json:"admission_number,omitempty"`
	Branch          *string `db:"branch" json:"branch,omitempty"`
	Semester        *string `db:"semester" json:"semester,omitempty"`
	Phone           *string `db:"phone" json:"phone,omitempty"`
	ProfilePicture  *string `db:"profile_picture" json:"profile_picture,omitempty"`
}

// DisplayName falls back to the email when no full name is stored.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller may moderate listings.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleSuperAdmin)
}

// Actor identifies who performs an operation.
type Actor struct {
	Email    string
	FullName string
	Admin    bool
}

// ActorFromClaims converts validated claims into an Actor.
func ActorFromClaims(c *JWTClaims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{Email: c.Email, FullName: c.FullName, Admin: c.IsAdmin()}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
