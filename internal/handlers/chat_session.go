package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/metrics"
	"github.com/thereayou/partychat/internal/services"
	ws "github.com/thereayou/partychat/internal/websocket"
)

// chatSession is the state of one /ws/chat connection. It belongs to the
// connection's read goroutine and is never shared.
type chatSession struct {
	hub    *ws.Hub
	chat   *services.ChatService
	roomID uint
	userID uint
	group  string
}

func newChatSession(hub *ws.Hub, chat *services.ChatService, roomID, userID uint) *chatSession {
	return &chatSession{
		hub:    hub,
		chat:   chat,
		roomID: roomID,
		userID: userID,
		group:  ws.RoomGroup(roomID),
	}
}

// open подписывает соединение на комнату и отмечает пользователя онлайн
func (s *chatSession) open(client *ws.Client) error {
	s.hub.Subscribe(client, s.group)
	metrics.WSConnections.WithLabelValues(metrics.KindChat).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := s.chat.Join(ctx, s.roomID, s.userID)
	return err
}

func (s *chatSession) HandleMessage(client *ws.Client, raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.chat.Touch(ctx, s.roomID); err != nil {
		client.Log.Warn().Err(err).Msg("refresh presence")
	}

	var req dto.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return client.SendJSON(dto.NewError(dto.CodeInvalidPayload))
	}

	switch req.Type {
	case dto.TypeMessage:
		_, err := s.chat.Send(ctx, s.roomID, s.userID, req.Text, req.AttachmentIDs)
		if errors.Is(err, services.ErrEmptyMessage) {
			return client.SendJSON(dto.NewError(dto.CodeInvalidPayload))
		}
		if err != nil {
			_ = client.SendJSON(dto.NewError(dto.CodeInternal))
			return err
		}
		return nil

	case dto.TypeRead:
		msgID, err := dto.ID(req.MsgID)
		if err != nil {
			return client.SendJSON(dto.NewError(dto.CodeInvalidPayload))
		}
		if _, err := s.chat.Read(ctx, s.roomID, s.userID, msgID); err != nil {
			_ = client.SendJSON(dto.NewError(dto.CodeInternal))
			return err
		}
		return nil

	default:
		return client.SendJSON(dto.NewError(dto.CodeUnknownType))
	}
}

func (s *chatSession) Close(client *ws.Client) {
	s.hub.Unsubscribe(client, s.group)
	metrics.WSConnections.WithLabelValues(metrics.KindChat).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.chat.Leave(ctx, s.roomID, s.userID); err != nil {
		client.Log.Warn().Err(err).Uint("room_id", s.roomID).Msg("chat presence leave")
	}
}
