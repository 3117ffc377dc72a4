package models

import "time"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is a community account. A nil PasswordHash means the account was
// created by an admin or a referral approval and has not been activated yet.
type User struct {
	Base
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    *string    `json:"-"`
	Role            Role       `gorm:"type:varchar(16);not null;default:'MEMBER'" json:"role"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	City            string     `json:"city,omitempty"`
	Occupation      string     `json:"occupation,omitempty"`
	Description     string     `json:"description,omitempty"`
	InstagramURL    string     `json:"instagram_url,omitempty"`
	LinkedinURL     string     `json:"linkedin_url,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Activated reports whether the account has a password set.
func (u *User) Activated() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
