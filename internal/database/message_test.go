package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/partychat/internal/models"
)

func newRoom(t *testing.T, db *Database, userIDs ...uint) *models.Room {
	t.Helper()

	room := &models.Room{Title: "room", Type: models.RoomTypeGroup}
	require.NoError(t, db.CreateRoom(context.Background(), room, userIDs))
	return room
}

func TestSaveMessage_SenderHasReadIt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := createUsers(t, db, "a", "b")
	room := newRoom(t, db, users...)

	msg := &models.Message{RoomID: room.ID, SenderID: users[0], Text: "hello"}
	urls, err := db.SaveMessage(ctx, msg, nil)
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, "text", msg.Type)

	n, err := db.ReadCount(ctx, msg.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSaveMessage_LinksOnlyFreeAttachments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := createUsers(t, db, "a")
	room := newRoom(t, db, users...)

	free := models.Attachment{URL: "/media/1.png", UploadedAt: time.Now()}
	taken := models.Attachment{URL: "/media/2.png", UploadedAt: time.Now()}
	require.NoError(t, db.DB().Create(&free).Error)
	require.NoError(t, db.DB().Create(&taken).Error)

	first := &models.Message{RoomID: room.ID, SenderID: users[0], Text: "one"}
	urls, err := db.SaveMessage(ctx, first, []uint{taken.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/2.png"}, urls)

	second := &models.Message{RoomID: room.ID, SenderID: users[0], Text: "two"}
	urls, err = db.SaveMessage(ctx, second, []uint{free.ID, taken.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, []string{"/media/1.png"}, urls)

	var reloaded models.Attachment
	require.NoError(t, db.DB().First(&reloaded, taken.ID).Error)
	require.NotNil(t, reloaded.MessageID)
	assert.Equal(t, first.ID, *reloaded.MessageID)
}

func TestMarkReadUpTo_MarksPriorMessagesOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := createUsers(t, db, "writer", "reader", "other")
	room := newRoom(t, db, users...)
	otherRoom := newRoom(t, db, users...)

	var ids []uint
	for i := 0; i < 3; i++ {
		m := &models.Message{RoomID: room.ID, SenderID: users[0], Text: "m"}
		_, err := db.SaveMessage(ctx, m, nil)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	elsewhere := &models.Message{RoomID: otherRoom.ID, SenderID: users[0], Text: "x"}
	_, err := db.SaveMessage(ctx, elsewhere, nil)
	require.NoError(t, err)

	last := ids[len(ids)-1]
	count, err := db.MarkReadUpTo(ctx, room.ID, users[1], last)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "writer and reader")

	for _, id := range ids {
		n, err := db.ReadCount(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	}

	again, err := db.MarkReadUpTo(ctx, room.ID, users[1], last)
	require.NoError(t, err)
	assert.Equal(t, count, again, "second read changes nothing")

	n, err := db.ReadCount(ctx, elsewhere.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "other rooms untouched")

	// Сообщение из чужой комнаты даёт 0
	count, err = db.MarkReadUpTo(ctx, room.ID, users[2], elsewhere.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetRoomMessages_Ordered(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := createUsers(t, db, "a")
	room := newRoom(t, db, users...)

	base := time.Now()
	for i, text := range []string{"late", "early", "tie-1", "tie-2"} {
		created := base
		switch i {
		case 0:
			created = base.Add(time.Minute)
		case 1:
			created = base.Add(-time.Minute)
		}
		_, err := db.SaveMessage(ctx, &models.Message{RoomID: room.ID, SenderID: users[0], Text: text, CreatedAt: created}, nil)
		require.NoError(t, err)
	}

	msgs, err := db.GetRoomMessages(ctx, room.ID)
	require.NoError(t, err)
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
		assert.Len(t, m.Reads, 1)
	}
	assert.Equal(t, []string{"early", "tie-1", "tie-2", "late"}, texts)
}

func TestParticipants(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := createUsers(t, db, "a", "b", "c")
	room := newRoom(t, db, users[0], users[1])

	ok, err := db.IsParticipant(ctx, room.ID, users[2])
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddUserToRoom(ctx, users[2], room.ID))
	require.NoError(t, db.AddUserToRoom(ctx, users[2], room.ID))

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 3)

	_, err = db.GetRoom(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
