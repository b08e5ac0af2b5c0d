package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/matchmaking"
	"github.com/thereayou/partychat/internal/metrics"
	ws "github.com/thereayou/partychat/internal/websocket"
)

// matchSession is the state of one /ws/match connection: the ticket it
// opened last and the group that ticket's events arrive on.
type matchSession struct {
	hub    *ws.Hub
	match  *matchmaking.Service
	users  UserLookup
	authID uint

	ticketID  uint
	partySize int
	group     string
}

func newMatchSession(hub *ws.Hub, match *matchmaking.Service, users UserLookup, authID uint) *matchSession {
	return &matchSession{hub: hub, match: match, users: users, authID: authID}
}

func (s *matchSession) HandleMessage(client *ws.Client, raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var req dto.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return client.SendJSON(dto.NewError(dto.CodeInvalidPayload))
	}

	// leave_queue работает и без user_id, если у соединения есть свой тикет
	if req.Type == dto.TypeLeaveQueue && req.UserID == nil && (s.ticketID != 0 || s.authID != 0) {
		return s.leave(ctx, client, s.authID)
	}

	userID, err := dto.ID(req.UserID)
	if err != nil {
		if s.authID == 0 || !errors.Is(err, dto.ErrMissing) {
			return client.SendJSON(dto.NewError(dto.CodeMissingUserID))
		}
		userID = s.authID
	}
	if s.authID != 0 && userID != s.authID {
		return client.SendJSON(dto.NewError(dto.CodeForbidden))
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return client.SendJSON(dto.NewError(dto.CodeInvalidUser))
		}
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}

	switch req.Type {
	case dto.TypeJoinQueue:
		size, err := dto.Int(req.PartySize)
		if err != nil || size < 2 {
			return client.SendJSON(dto.NewError(dto.CodePartySizeInvalid))
		}
		return s.join(ctx, client, userID, size)

	case dto.TypeLeaveQueue:
		return s.leave(ctx, client, userID)

	case dto.TypeStatus:
		return s.status(ctx, client, userID)

	default:
		return client.SendJSON(dto.NewError(dto.CodeUnknownType))
	}
}

func (s *matchSession) join(ctx context.Context, client *ws.Client, userID uint, size int) error {
	ticket, err := s.match.CreateTicket(ctx, userID, size)
	if err != nil {
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}

	// Группа старого тикета больше не нужна, его уже отменили
	if s.group != "" {
		s.hub.Unsubscribe(client, s.group)
	}
	s.ticketID = ticket.ID
	s.partySize = size
	s.group = ws.TicketGroup(ticket.ID)
	s.hub.Subscribe(client, s.group)

	if err := s.match.Enqueue(ctx, ticket); err != nil {
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}

	res, err := s.match.Attempt(ctx, size)
	if err != nil {
		// Тикет остаётся в очереди, его подберёт sweeper
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}
	if res.Matched() && res.Record.Includes(ticket.ID) {
		// matched придёт через группу тикета
		return nil
	}
	// Попытка могла сматчить более старые тикеты, наш по-прежнему ждёт
	return client.SendJSON(dto.WaitingEvent{Event: dto.EventWaiting, TicketID: ticket.ID, PartySize: size})
}

func (s *matchSession) leave(ctx context.Context, client *ws.Client, userID uint) error {
	var err error
	switch {
	case s.ticketID != 0:
		_, err = s.match.Leave(ctx, s.ticketID)
	case userID != 0:
		_, err = s.match.LeaveByUser(ctx, userID)
	}
	if err != nil {
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}
	return client.SendJSON(dto.LeftEvent{Event: dto.EventLeft})
}

func (s *matchSession) status(ctx context.Context, client *ws.Client, userID uint) error {
	ticket, err := s.match.Status(ctx, userID)
	if err != nil {
		_ = client.SendJSON(dto.NewError(dto.CodeInternal))
		return err
	}
	if ticket == nil {
		return client.SendJSON(dto.StatusEvent{Event: dto.EventStatus})
	}

	ev := dto.StatusEvent{
		Event:      dto.EventStatus,
		HasTicket:  true,
		TicketID:   &ticket.ID,
		Status:     string(ticket.Status),
		PartySize:  &ticket.PartySize,
		ChatRoomID: ticket.RoomID,
	}
	return client.SendJSON(ev)
}

// Close отменяет ещё ожидающий тикет соединения
func (s *matchSession) Close(client *ws.Client) {
	metrics.WSConnections.WithLabelValues(metrics.KindMatch).Dec()
	if s.group != "" {
		s.hub.Unsubscribe(client, s.group)
	}
	if s.ticketID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := s.match.Leave(ctx, s.ticketID); err != nil {
		client.Log.Warn().Err(err).Uint("ticket_id", s.ticketID).Msg("cancel ticket on disconnect")
	}
}
