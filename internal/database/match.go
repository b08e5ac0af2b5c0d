package database

import (
	"context"
	"fmt"
	"time"

	"github.com/thereayou/partychat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRecord is what a committed match produced.
type MatchRecord struct {
	Room      models.Room
	Group     models.MatchGroup
	TicketIDs []uint
	UserIDs   []uint
	MatchedAt time.Time
}

// Includes reports whether ticketID is one of the matched tickets.
func (r *MatchRecord) Includes(ticketID uint) bool {
	for _, id := range r.TicketIDs {
		if id == ticketID {
			return true
		}
	}
	return false
}

// ConfirmMatch is the durable half of a match attempt. It row-locks the given
// tickets and, only if every one of them is still WAITING for partySize,
// creates the room and the group and flips the tickets to MATCHED in the same
// transaction. Otherwise nothing is written and an *UnavailableError lists the
// tickets that are still waiting, in input order.
func (d *Database) ConfirmMatch(ctx context.Context, ticketIDs []uint, partySize int, title string) (*MatchRecord, error) {
	if len(ticketIDs) != partySize {
		return nil, fmt.Errorf("confirm match: got %d tickets for party of %d", len(ticketIDs), partySize)
	}

	var rec *MatchRecord

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tickets []models.Ticket
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ? AND status = ? AND party_size = ?", ticketIDs, models.TicketWaiting, partySize).
			Order("id").
			Find(&tickets).Error
		if err != nil {
			return err
		}

		byID := make(map[uint]models.Ticket, len(tickets))
		for _, t := range tickets {
			byID[t.ID] = t
		}

		// Порядок — как пришёл из очереди, дубликаты отбрасываем
		waiting := make([]models.Ticket, 0, len(tickets))
		seen := make(map[uint]bool, len(ticketIDs))
		for _, id := range ticketIDs {
			t, ok := byID[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			waiting = append(waiting, t)
		}

		if len(waiting) < partySize {
			ids := make([]uint, len(waiting))
			for i, t := range waiting {
				ids[i] = t.ID
			}
			return &UnavailableError{Requested: partySize, Waiting: ids}
		}

		now := time.Now()
		userIDs := make([]uint, len(waiting))
		ids := make([]uint, len(waiting))
		for i, t := range waiting {
			userIDs[i] = t.UserID
			ids[i] = t.ID
		}

		room := models.Room{Title: title, Type: models.RoomTypeMatch, CreatedAt: now}
		if err := createRoomTx(tx, &room, userIDs); err != nil {
			return err
		}

		group := models.MatchGroup{PartySize: partySize, RoomID: room.ID, CreatedAt: now}
		if err := tx.Omit(clause.Associations).Create(&group).Error; err != nil {
			return err
		}
		members := make([]models.MatchGroupMember, len(userIDs))
		for i, uid := range userIDs {
			members[i] = models.MatchGroupMember{GroupID: group.ID, UserID: uid}
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		group.Members = members

		res := tx.Model(&models.Ticket{}).
			Where("id IN ? AND status = ?", ids, models.TicketWaiting).
			Updates(map[string]interface{}{
				"status":     models.TicketMatched,
				"room_id":    room.ID,
				"matched_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			// Строки заблокированы выше, сюда попадаем только на хранилище без row-lock
			return fmt.Errorf("confirm match: updated %d of %d tickets", res.RowsAffected, len(ids))
		}

		rec = &MatchRecord{Room: room, Group: group, TicketIDs: ids, UserIDs: userIDs, MatchedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetMatchGroupByRoom возвращает группу, созданную вместе с комнатой
func (d *Database) GetMatchGroupByRoom(ctx context.Context, roomID uint) (*models.MatchGroup, error) {
	var group models.MatchGroup
	if err := d.db.WithContext(ctx).Preload("Members").Where("room_id = ?", roomID).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}
