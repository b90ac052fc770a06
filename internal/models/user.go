package models

import (
	"time"
)

// UserState tracks the account lifecycle. Only confirmed users are ever
// granted an authenticated session.
type UserState string

const (
	StateUnconfirmed     UserState = "unconfirmed"
	StateConfirmed       UserState = "confirmed"
	StateLocked          UserState = "locked"
	StateDeleted         UserState = "deleted"
	StatePendingApproval UserState = "pending_approval"
)

// AuthMethod records which resolver strategy authenticated a request.
// It is per-request state, never persisted on the user.
type AuthMethod string

const (
	MethodTrustedHeader AuthMethod = "trusted_header"
	MethodPassword      AuthMethod = "password"
)

type User struct {
	ID           string    `gorm:"primaryKey"`
	Login        string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"not null"`
	PasswordHash string    // LDAP shadow users carry a random placeholder hash
	State        UserState `gorm:"not null;default:'unconfirmed'"`
	Realname     string

	// Per-account backend override; zero values mean "use the process default"
	SourceHost string
	SourcePort int

	// AdminNote records provisioning origin (e.g. LDAP-created accounts)
	AdminNote string

	Roles []Role `gorm:"many2many:user_roles"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role is a named authorization group attached to users.
type Role struct {
	ID    string `gorm:"primaryKey"`
	Title string `gorm:"uniqueIndex;not null"`
}

// IsConfirmed reports whether the account may hold an authenticated session.
func (u *User) IsConfirmed() bool {
	return u.State == StateConfirmed
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(title string) bool {
	for _, r := range u.Roles {
		if r.Title == title {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user has the Admin role
func (u *User) IsAdmin() bool {
	return u.HasRole("Admin")
}
