package models

import "github.com/google/uuid"

type Business struct {
	Base
	Name          string    `gorm:"not null" json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `gorm:"not null;index" json:"category"`
	ImageURL      string    `json:"image_url,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Website       string    `json:"website,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	InstagramURL  string    `json:"instagram_url,omitempty"`
	LinkedinURL   string    `json:"linkedin_url,omitempty"`
	IsRecommended bool      `gorm:"default:false" json:"is_recommended"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Business) TableName() string {
	return "businesses"
}
