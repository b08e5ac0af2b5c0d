package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/events"
	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/metrics"
	"github.com/thereayou/partychat/internal/models"
	"github.com/thereayou/partychat/internal/websocket"
)

var ErrEmptyMessage = errors.New("message has no text and no attachments")

const eventTimeout = 5 * time.Second

type ChatService struct {
	store    ChatStore
	presence PresenceRegistry
	notifier Notifier
	events   events.Publisher
}

func NewChatService(store ChatStore, presence PresenceRegistry, notifier Notifier, publisher events.Publisher) *ChatService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ChatService{store: store, presence: presence, notifier: notifier, events: publisher}
}

// Authorize checks that userID exists and takes part in roomID.
func (s *ChatService) Authorize(ctx context.Context, roomID, userID uint) error {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return database.ErrNotParticipant
	}
	return nil
}

// Join marks userID online in roomID and tells the room.
func (s *ChatService) Join(ctx context.Context, roomID, userID uint) ([]uint, error) {
	if err := s.presence.Join(ctx, roomID, userID); err != nil {
		return nil, fmt.Errorf("presence join: %w", err)
	}
	return s.announcePresence(ctx, roomID, userID)
}

// Leave removes userID from the room's online set and tells the room.
func (s *ChatService) Leave(ctx context.Context, roomID, userID uint) error {
	if err := s.presence.Leave(ctx, roomID, userID); err != nil {
		return fmt.Errorf("presence leave: %w", err)
	}
	_, err := s.announcePresence(ctx, roomID, userID)
	return err
}

func (s *ChatService) Touch(ctx context.Context, roomID uint) error {
	return s.presence.Refresh(ctx, roomID)
}

func (s *ChatService) Presence(ctx context.Context, roomID uint) ([]uint, error) {
	return s.presence.Snapshot(ctx, roomID)
}

func (s *ChatService) announcePresence(ctx context.Context, roomID, userID uint) ([]uint, error) {
	online, err := s.presence.Snapshot(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("presence snapshot: %w", err)
	}
	ev := dto.PresenceEvent{Event: dto.EventPresence, UserID: userID, Online: online}
	if err := s.notifier.Publish(ctx, websocket.RoomGroup(roomID), ev); err != nil {
		log.Warn().Err(err).Uint("room_id", roomID).Msg("publish presence")
	}
	return online, nil
}

// Send persists a message and broadcasts it to the room.
func (s *ChatService) Send(ctx context.Context, roomID, senderID uint, text string, attachmentIDs []uint) (*dto.MessageEvent, error) {
	if strings.TrimSpace(text) == "" && len(attachmentIDs) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &models.Message{RoomID: roomID, SenderID: senderID, Text: text, Type: "text"}
	urls, err := s.store.SaveMessage(ctx, msg, attachmentIDs)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.ChatMessages.Inc()

	ev := &dto.MessageEvent{
		Event:          dto.EventMessage,
		ID:             msg.ID,
		RoomID:         msg.RoomID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Type:           msg.Type,
		ReadBy:         []uint{senderID},
		ReadCount:      1,
		CreatedAt:      msg.CreatedAt,
		AttachmentURLs: urls,
	}
	if sender, err := s.store.GetUser(ctx, senderID); err == nil {
		ev.SenderNickname = sender.Nickname
	}

	// Сообщение уже сохранено, рассылка не зависит от жизни соединения
	nctx := context.WithoutCancel(ctx)
	if err := s.notifier.Publish(nctx, websocket.RoomGroup(roomID), ev); err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Uint("message_id", msg.ID).Msg("broadcast message")
	}
	if err := s.store.UpdateLastSeen(nctx, senderID); err != nil {
		log.Warn().Err(err).Uint("user_id", senderID).Msg("update last seen")
	}
	s.publish(nctx, events.QueueMessageCreated, events.MessageCreated{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})
	return ev, nil
}

// Read marks every message of the room up to msgID as read by userID and
// broadcasts the reader count of msgID.
func (s *ChatService) Read(ctx context.Context, roomID, userID, msgID uint) (int64, error) {
	count, err := s.store.MarkReadUpTo(ctx, roomID, userID, msgID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	metrics.ChatReads.Inc()

	ev := dto.ReadEvent{Event: dto.EventRead, MsgID: msgID, UserID: userID, ReadCount: count}
	if err := s.notifier.Publish(context.WithoutCancel(ctx), websocket.RoomGroup(roomID), ev); err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("broadcast read")
	}
	return count, nil
}

// AppendMessage is the collaborator entry point: same as Send, but the
// sender is checked first since there is no connection doing it.
func (s *ChatService) AppendMessage(ctx context.Context, roomID, senderID uint, text string) (uint, error) {
	if err := s.Authorize(ctx, roomID, senderID); err != nil {
		return 0, err
	}
	ev, err := s.Send(ctx, roomID, senderID, text, nil)
	if err != nil {
		return 0, err
	}
	return ev.ID, nil
}

// ListMessages returns the room history in canonical order.
func (s *ChatService) ListMessages(ctx context.Context, roomID uint) ([]dto.MessageResponse, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	msgs, err := s.store.GetRoomMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = dto.MessageResponse{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
			ReadCount: len(m.Reads),
		}
	}
	return out, nil
}

func (s *ChatService) publish(ctx context.Context, queue string, event interface{}) {
	pctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, queue, event); err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("publish domain event")
	}
}
