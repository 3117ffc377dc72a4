package models

import "github.com/google/uuid"

// GalleryItem holds media metadata; the files themselves live elsewhere.
type GalleryItem struct {
	Base
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `gorm:"not null" json:"image_url"`
	VideoURL     string     `json:"video_url,omitempty"`
	Category     string     `gorm:"index" json:"category,omitempty"`
	EventID      *uuid.UUID `gorm:"type:uuid;index" json:"event_id,omitempty"`
	UploadedByID uuid.UUID  `gorm:"type:uuid;not null;index" json:"uploaded_by_id"`

	Event      *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	UploadedBy *User  `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
}

func (GalleryItem) TableName() string {
	return "gallery_items"
}
