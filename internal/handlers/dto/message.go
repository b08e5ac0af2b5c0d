package dto

import "time"

// AppendMessageRequest is the collaborator append call.
type AppendMessageRequest struct {
	SenderID uint   `json:"sender_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

type AppendMessageResponse struct {
	ID uint `json:"id"`
}

type MessageResponse struct {
	ID        uint      `json:"id"`
	SenderID  uint      `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	ReadCount int       `json:"read_count"`
}

type PresenceResponse struct {
	RoomID uint   `json:"room_id"`
	Online []uint `json:"online"`
}
