package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Base
	ShortCode   string     `gorm:"uniqueIndex;size:6;not null" json:"short_code"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"not null" json:"description"`
	Category    string     `gorm:"index" json:"category"`
	ImageURL    string     `json:"image_url,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedByID uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by_id"`

	CreatedBy *User         `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Targets   []EventTarget `gorm:"foreignKey:EventID" json:"targets,omitempty"`
	Joins     []EventJoin   `gorm:"foreignKey:EventID" json:"joins,omitempty"`
}

func (Event) TableName() string {
	return "events"
}

type EventTarget struct {
	EventID uuid.UUID `gorm:"type:uuid;primaryKey" json:"event_id"`
	GroupID uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`

	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

func (EventTarget) TableName() string {
	return "event_targets"
}

type EventJoin struct {
	Base
	EventID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_joins_event_user" json:"event_id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_joins_event_user" json:"user_id"`
	QRCode  string    `gorm:"type:text" json:"qr_code"`
	Paid    bool      `gorm:"default:false" json:"paid"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (EventJoin) TableName() string {
	return "event_joins"
}
