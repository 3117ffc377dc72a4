package models

import "time"

// InvitationToken grants one password-set operation for Identifier (an email).
// It references the user by value only.
type InvitationToken struct {
	Token      string    `gorm:"primaryKey;size:64" json:"-"`
	Identifier string    `gorm:"not null;index" json:"identifier"`
	Expires    time.Time `gorm:"not null;index" json:"expires"`
	CreatedAt  time.Time `json:"created_at"`
}

func (InvitationToken) TableName() string {
	return "invitation_tokens"
}

func (t *InvitationToken) Expired(now time.Time) bool {
	return !t.Expires.After(now)
}
