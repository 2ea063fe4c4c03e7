package models

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a club account. Accounts are created through registration, the
// admin bootstrap, or on first login with an OIDC token (Sub set).
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Sub          string    `bson:"sub,omitempty" json:"sub,omitempty"` // OIDC subject
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	Role         string    `bson:"role" json:"role"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
