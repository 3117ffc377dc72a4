package models

import "github.com/google/uuid"

// Group is a WhatsApp group events can be announced to.
type Group struct {
	Base
	Name string  `gorm:"uniqueIndex;not null" json:"name"`
	WaID *string `json:"wa_id,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMembership struct {
	GroupID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (GroupMembership) TableName() string {
	return "group_memberships"
}
