package models

import "time"

const (
	RoomTypeMatch = "match"
	RoomTypeGroup = "group"
)

type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"not null;default:''"`
	Type      string `gorm:"not null;default:'group'"`
	CreatedAt time.Time

	// Внешний ресурс, к которому привязана комната (пост и т.п.). У комнат из матчинга пусто.
	LinkedType *string
	LinkedID   *uint

	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
}

// RoomParticipant is the membership row. Rows are only ever added by this core.
type RoomParticipant struct {
	RoomID   uint `gorm:"primaryKey"`
	UserID   uint `gorm:"primaryKey;index"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
