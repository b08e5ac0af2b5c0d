package models

import "time"

type Message struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;index:idx_messages_room_created,priority:1"`
	SenderID  uint      `gorm:"not null"`
	Text      string    `gorm:"not null;default:''"`
	Type      string    `gorm:"not null;default:'text'"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2"`

	// Связи
	Sender      User          `gorm:"foreignKey:SenderID"`
	Reads       []MessageRead `gorm:"foreignKey:MessageID"`
	Attachments []Attachment  `gorm:"foreignKey:MessageID"`
}

// MessageRead records that a user has read a message. The composite key
// keeps read receipts idempotent.
type MessageRead struct {
	MessageID uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey"`
	ReadAt    time.Time
}

// Attachment rows are uploaded elsewhere and linked to a message on send.
type Attachment struct {
	ID         uint   `gorm:"primaryKey"`
	MessageID  *uint  `gorm:"index"`
	URL        string `gorm:"not null"`
	UploadedAt time.Time
}
