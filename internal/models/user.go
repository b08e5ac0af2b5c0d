package models

import "time"

// User mirrors the account row owned by the external account service.
// Only the fields read by chat and matchmaking are mapped.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	Username   string `gorm:"uniqueIndex;not null"`
	Nickname   string
	AvatarURL  string
	LastSeenAt time.Time
	CreatedAt  time.Time
}
