package db_models

import (
	"gorm.io/datatypes"
)

type Account struct {
	BaseModel
	// MemberID is the short numeric id shown in the app; it is what the
	// payment provider sends as account.user_id.
	MemberID     string `gorm:"uniqueIndex;size:12"`
	Name         string
	Email        string `gorm:"unique"`
	PasswordHash string
	Role         string `gorm:"default:user"`

	// Transcription minutes available, credited by minute-package
	// purchases and debited by the processing pipeline.
	MinuteBalance int64 `gorm:"default:0"`

	SubscriptionSnapshot datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}
