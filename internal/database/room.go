package database

import (
	"context"
	"errors"
	"time"

	"github.com/thereayou/partychat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom создаёт комнату вместе с участниками
func (d *Database) CreateRoom(ctx context.Context, room *models.Room, userIDs []uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createRoomTx(tx, room, userIDs)
	})
}

func createRoomTx(tx *gorm.DB, room *models.Room, userIDs []uint) error {
	if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]models.RoomParticipant, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.RoomParticipant{RoomID: room.ID, UserID: id, JoinedAt: now})
	}
	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return err
	}
	room.Participants = rows
	return nil
}

func (d *Database) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).Preload("Participants").First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// AddUserToRoom добавляет участника; повторное добавление ничего не меняет
func (d *Database) AddUserToRoom(ctx context.Context, userID, roomID uint) error {
	row := models.RoomParticipant{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	return d.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (d *Database) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	var n int64
	err := d.db.WithContext(ctx).
		Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}
