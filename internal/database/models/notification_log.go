package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotificationEventBroadcast NotificationKind = "event_broadcast"
	NotificationInvitation     NotificationKind = "invitation"
)

// NotificationLog records the per-target outcome of one fan-out.
type NotificationLog struct {
	Base
	Kind      NotificationKind `gorm:"type:varchar(32);not null;index" json:"kind"`
	SubjectID uuid.UUID        `gorm:"type:uuid;not null;index" json:"subject_id"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   datatypes.JSON   `json:"results"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}
