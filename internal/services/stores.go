package services

import (
	"context"

	"github.com/thereayou/partychat/internal/models"
)

// ChatStore is the durable side of chat, implemented by *database.Database.
type ChatStore interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uint) error
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	IsParticipant(ctx context.Context, roomID, userID uint) (bool, error)
	SaveMessage(ctx context.Context, message *models.Message, attachmentIDs []uint) ([]string, error)
	MarkReadUpTo(ctx context.Context, roomID, userID, upToID uint) (int64, error)
	GetRoomMessages(ctx context.Context, roomID uint) ([]models.Message, error)
}

// PresenceRegistry is implemented by *cache.Presence.
type PresenceRegistry interface {
	Join(ctx context.Context, roomID, userID uint) error
	Leave(ctx context.Context, roomID, userID uint) error
	Refresh(ctx context.Context, roomID uint) error
	Snapshot(ctx context.Context, roomID uint) ([]uint, error)
}

// Notifier is implemented by *websocket.Hub.
type Notifier interface {
	Publish(ctx context.Context, group string, v interface{}) error
}
