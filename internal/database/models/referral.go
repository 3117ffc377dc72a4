package models

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "PENDING"
	ReferralStatusApproved ReferralStatus = "APPROVED"
	ReferralStatusRejected ReferralStatus = "REJECTED"
)

// Referral is a member's nomination of a candidate. At most one PENDING
// referral may exist per email; the partial unique index enforces it.
type Referral struct {
	Base
	Email        string         `gorm:"not null;index:idx_referrals_pending_email,unique,where:status = 'PENDING'" json:"email"`
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `json:"phone,omitempty"`
	Age          *int           `json:"age,omitempty"`
	City         string         `json:"city,omitempty"`
	Occupation   string         `json:"occupation,omitempty"`
	LinkedinURL  string         `json:"linkedin_url,omitempty"`
	InstagramURL string         `json:"instagram_url,omitempty"`
	Hobbies      string         `json:"hobbies,omitempty"`
	Interests    string         `json:"interests,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	HowDoYouKnow string         `gorm:"not null" json:"how_do_you_know"`
	HowLong      string         `gorm:"not null" json:"how_long"`
	Status       ReferralStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`

	ReferrerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"referrer_id"`
	ReviewedByID    *uuid.UUID `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	Referrer   *User `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReviewedBy *User `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
}

func (Referral) TableName() string {
	return "referrals"
}
