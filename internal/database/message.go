package database

import (
	"context"
	"time"

	"github.com/thereayou/partychat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveMessage сохраняет сообщение, отмечает его прочитанным отправителем и
// привязывает ещё не привязанные вложения. Возвращает URL привязанных вложений.
func (d *Database) SaveMessage(ctx context.Context, message *models.Message, attachmentIDs []uint) ([]string, error) {
	urls := []string{}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if message.CreatedAt.IsZero() {
			message.CreatedAt = time.Now()
		}
		if message.Type == "" {
			message.Type = "text"
		}
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}

		read := models.MessageRead{MessageID: message.ID, UserID: message.SenderID, ReadAt: message.CreatedAt}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}
		message.Reads = []models.MessageRead{read}

		if len(attachmentIDs) == 0 {
			return nil
		}

		var attachments []models.Attachment
		if err := tx.Where("id IN ? AND message_id IS NULL", attachmentIDs).Order("id").Find(&attachments).Error; err != nil {
			return err
		}
		if len(attachments) == 0 {
			return nil
		}

		ids := make([]uint, len(attachments))
		for i, a := range attachments {
			ids[i] = a.ID
			urls = append(urls, a.URL)
		}
		if err := tx.Model(&models.Attachment{}).Where("id IN ?", ids).Update("message_id", message.ID).Error; err != nil {
			return err
		}
		for i := range attachments {
			attachments[i].MessageID = &message.ID
		}
		message.Attachments = attachments
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// GetRoomMessages возвращает все сообщения комнаты в каноническом порядке
// (created_at, затем id)
func (d *Database) GetRoomMessages(ctx context.Context, roomID uint) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Order("id ASC").
		Preload("Reads").
		Find(&messages).Error
	return messages, err
}

// MarkReadUpTo отмечает прочитанными все сообщения комнаты с id <= upToID,
// которые пользователь ещё не читал. Возвращает число читателей upToID
// (0, если такого сообщения в комнате нет).
func (d *Database) MarkReadUpTo(ctx context.Context, roomID, userID, upToID uint) (int64, error) {
	var count int64

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alreadyRead := tx.Model(&models.MessageRead{}).Select("message_id").Where("user_id = ?", userID)

		var ids []uint
		err := tx.Model(&models.Message{}).
			Where("room_id = ? AND id <= ?", roomID, upToID).
			Where("id NOT IN (?)", alreadyRead).
			Order("id").
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			now := time.Now()
			reads := make([]models.MessageRead, len(ids))
			for i, id := range ids {
				reads[i] = models.MessageRead{MessageID: id, UserID: userID, ReadAt: now}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reads).Error; err != nil {
				return err
			}
		}

		var target int64
		if err := tx.Model(&models.Message{}).Where("id = ? AND room_id = ?", upToID, roomID).Count(&target).Error; err != nil {
			return err
		}
		if target == 0 {
			count = 0
			return nil
		}
		return tx.Model(&models.MessageRead{}).Where("message_id = ?", upToID).Count(&count).Error
	})

	return count, err
}

func (d *Database) ReadCount(ctx context.Context, messageID uint) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.MessageRead{}).Where("message_id = ?", messageID).Count(&n).Error
	return n, err
}
