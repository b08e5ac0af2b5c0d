package database

import (
	"context"
	"errors"

	"github.com/thereayou/partychat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTicket отменяет текущие WAITING-тикеты пользователя и создаёт новый.
// Строка пользователя блокируется, чтобы параллельные join одного пользователя
// не оставили два WAITING-тикета. Возвращает новый тикет и отменённые.
func (d *Database) CreateTicket(ctx context.Context, userID uint, partySize int) (*models.Ticket, []models.Ticket, error) {
	var (
		ticket    models.Ticket
		cancelled []models.Ticket
	)

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := tx.Where("user_id = ? AND status = ?", userID, models.TicketWaiting).Find(&cancelled).Error; err != nil {
			return err
		}
		if len(cancelled) > 0 {
			ids := make([]uint, len(cancelled))
			for i := range cancelled {
				ids[i] = cancelled[i].ID
				cancelled[i].Status = models.TicketCancelled
			}
			err := tx.Model(&models.Ticket{}).
				Where("id IN ? AND status = ?", ids, models.TicketWaiting).
				Update("status", models.TicketCancelled).Error
			if err != nil {
				return err
			}
		}

		ticket = models.Ticket{UserID: userID, PartySize: partySize, Status: models.TicketWaiting}
		return tx.Omit(clause.Associations).Create(&ticket).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &ticket, cancelled, nil
}

func (d *Database) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := d.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// CancelIfWaiting переводит тикет в CANCELLED, только если он ещё WAITING.
// Возвращает true, если статус действительно изменился.
func (d *Database) CancelIfWaiting(ctx context.Context, ticketID uint) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticketID, models.TicketWaiting).
		Update("status", models.TicketCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LatestTicket возвращает самый свежий тикет пользователя
func (d *Database) LatestTicket(ctx context.Context, userID uint) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (d *Database) WaitingTicket(ctx context.Context, userID uint) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.TicketWaiting).
		Order("id DESC").
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}
