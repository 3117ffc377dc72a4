package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with UUID primary key and timestamps
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All lists every persistent model in dependency order, leaves first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&Referral{},
		&InvitationToken{},
		&Event{},
		&EventTarget{},
		&EventJoin{},
		&Business{},
		&GalleryItem{},
		&NotificationLog{},
	}
}
