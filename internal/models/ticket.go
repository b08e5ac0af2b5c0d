package models

import "time"

type TicketStatus string

const (
	TicketWaiting   TicketStatus = "WAITING"
	TicketMatched   TicketStatus = "MATCHED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// Ticket is a user's request to be matched into a group of PartySize.
// Status only moves forward: WAITING -> MATCHED or WAITING -> CANCELLED.
type Ticket struct {
	ID        uint         `gorm:"primaryKey"`
	UserID    uint         `gorm:"not null;index:idx_tickets_user_status,priority:1"`
	PartySize int          `gorm:"not null;index:idx_tickets_status_size_created,priority:2"`
	Status    TicketStatus `gorm:"type:varchar(16);not null;default:'WAITING';index:idx_tickets_user_status,priority:2;index:idx_tickets_status_size_created,priority:1"`
	CreatedAt time.Time    `gorm:"index:idx_tickets_status_size_created,priority:3"`
	MatchedAt *time.Time
	RoomID    *uint

	User User `gorm:"foreignKey:UserID"`
}

// MatchGroup records which users were matched together. Its member set is
// written once inside the match transaction and never changes.
type MatchGroup struct {
	ID        uint `gorm:"primaryKey"`
	PartySize int  `gorm:"not null"`
	RoomID    uint `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time

	Room    Room               `gorm:"foreignKey:RoomID"`
	Members []MatchGroupMember `gorm:"foreignKey:GroupID"`
}

type MatchGroupMember struct {
	GroupID uint `gorm:"primaryKey"`
	UserID  uint `gorm:"primaryKey;index"`
}
