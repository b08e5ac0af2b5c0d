package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/events"
	"github.com/thereayou/partychat/internal/handlers/dto"
	"github.com/thereayou/partychat/internal/models"
	"github.com/thereayou/partychat/internal/websocket"
)

const eventTimeout = 5 * time.Second

type TicketStore interface {
	CreateTicket(ctx context.Context, userID uint, partySize int) (*models.Ticket, []models.Ticket, error)
	GetTicket(ctx context.Context, id uint) (*models.Ticket, error)
	CancelIfWaiting(ctx context.Context, ticketID uint) (bool, error)
	LatestTicket(ctx context.Context, userID uint) (*models.Ticket, error)
	WaitingTicket(ctx context.Context, userID uint) (*models.Ticket, error)
}

// Notifier delivers an event to every connection subscribed to a group.
type Notifier interface {
	Publish(ctx context.Context, group string, v interface{}) error
}

// Service is the matchmaking API used by websocket sessions and the sweeper.
type Service struct {
	tickets  TicketStore
	queue    Queue
	engine   *Engine
	notifier Notifier
	events   events.Publisher
}

func NewService(tickets TicketStore, queue Queue, engine *Engine, notifier Notifier, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{tickets: tickets, queue: queue, engine: engine, notifier: notifier, events: publisher}
}

// CreateTicket cancels the user's waiting ticket, if any, and opens a new one.
// The new ticket is not queued yet so the caller can subscribe to its group
// first.
func (s *Service) CreateTicket(ctx context.Context, userID uint, partySize int) (*models.Ticket, error) {
	if partySize < 2 {
		return nil, ErrInvalidPartySize
	}

	ticket, cancelled, err := s.tickets.CreateTicket(ctx, userID, partySize)
	if err != nil {
		return nil, err
	}
	for _, t := range cancelled {
		if err := s.queue.Remove(ctx, cache.QueueKey(t.PartySize), t.ID); err != nil {
			log.Warn().Err(err).Uint("ticket_id", t.ID).Msg("remove cancelled ticket from queue")
		}
	}
	return ticket, nil
}

func (s *Service) Enqueue(ctx context.Context, ticket *models.Ticket) error {
	if err := s.queue.Push(ctx, cache.QueueKey(ticket.PartySize), ticket.ID); err != nil {
		return fmt.Errorf("enqueue ticket %d: %w", ticket.ID, err)
	}
	return nil
}

// Attempt runs one match attempt and, on success, notifies every matched
// ticket's group and publishes match.completed.
func (s *Service) Attempt(ctx context.Context, partySize int) (*Result, error) {
	res, err := s.engine.TryMatch(ctx, partySize)
	if err != nil {
		return nil, err
	}
	if !res.Matched() {
		return res, nil
	}

	// Матч уже закоммичен, уведомления не зависят от жизни вызывающего соединения
	nctx := context.WithoutCancel(ctx)
	rec := res.Record
	for _, tid := range rec.TicketIDs {
		ev := dto.MatchedEvent{Event: dto.EventMatched, ChatRoomID: rec.Room.ID, TicketID: tid}
		if err := s.notifier.Publish(nctx, websocket.TicketGroup(tid), ev); err != nil {
			log.Error().Err(err).Uint("ticket_id", tid).Msg("notify matched ticket")
		}
	}

	s.publish(nctx, events.QueueMatchCompleted, events.MatchCompleted{
		RoomID:    rec.Room.ID,
		GroupID:   rec.Group.ID,
		PartySize: rec.Group.PartySize,
		TicketIDs: rec.TicketIDs,
		UserIDs:   rec.UserIDs,
		MatchedAt: rec.MatchedAt,
	})
	return res, nil
}

// Leave cancels ticketID if it is still waiting and drops it from its queue.
// It reports whether the ticket was cancelled by this call.
func (s *Service) Leave(ctx context.Context, ticketID uint) (bool, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	cancelled, err := s.tickets.CancelIfWaiting(ctx, ticketID)
	if err != nil || !cancelled {
		return false, err
	}

	// Тикет мог уже уйти в попытку матча, тогда LREM ничего не найдёт
	if err := s.queue.Remove(ctx, cache.QueueKey(ticket.PartySize), ticketID); err != nil {
		log.Warn().Err(err).Uint("ticket_id", ticketID).Msg("remove ticket from queue")
	}
	return true, nil
}

// LeaveByUser cancels whatever ticket userID is waiting on.
func (s *Service) LeaveByUser(ctx context.Context, userID uint) (bool, error) {
	ticket, err := s.tickets.WaitingTicket(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Leave(ctx, ticket.ID)
}

// Status returns the user's most recent ticket, nil if they never had one.
func (s *Service) Status(ctx context.Context, userID uint) (*models.Ticket, error) {
	ticket, err := s.tickets.LatestTicket(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return ticket, err
}

func (s *Service) publish(ctx context.Context, queue string, event interface{}) {
	pctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, queue, event); err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("publish domain event")
	}
}
