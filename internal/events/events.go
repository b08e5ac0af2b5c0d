// Package events publishes domain events for downstream consumers such as
// the evaluation pipeline. Each event goes to a durable RabbitMQ queue named
// after it. Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"time"
)

const (
	QueueMatchCompleted = "match.completed"
	QueueMessageCreated = "chat.message.created"
)

type MatchCompleted struct {
	RoomID    uint      `json:"room_id"`
	GroupID   uint      `json:"group_id"`
	PartySize int       `json:"party_size"`
	TicketIDs []uint    `json:"ticket_ids"`
	UserIDs   []uint    `json:"user_ids"`
	MatchedAt time.Time `json:"matched_at"`
}

type MessageCreated struct {
	MessageID uint      `json:"message_id"`
	RoomID    uint      `json:"room_id"`
	SenderID  uint      `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, queue string, event interface{}) error
}

// Nop drops every event. Used when RABBITMQ_URL is empty.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
