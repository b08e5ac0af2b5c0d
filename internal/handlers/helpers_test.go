package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/matchmaking"
	"github.com/thereayou/partychat/internal/middleware"
	"github.com/thereayou/partychat/internal/models"
	"github.com/thereayou/partychat/internal/services"
	ws "github.com/thereayou/partychat/internal/websocket"
	"github.com/thereayou/partychat/pkg/auth"
)

type testEnv struct {
	srv *httptest.Server
	db  *database.Database
	rdb *redis.Client
	hub *ws.Hub
}

func newTestEnv(t *testing.T, jwtMgr *auth.JWTManager) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(rdb)
	go hub.Run()
	require.NoError(t, hub.Listen(ctx))
	t.Cleanup(func() {
		cancel()
		hub.Stop()
	})

	queue := cache.NewTicketQueue(rdb, time.Hour)
	engine := matchmaking.NewEngine(cache.NewLocker(rdb), queue, db, 5*time.Second, "매칭 채팅방")
	match := matchmaking.NewService(db, queue, engine, hub, nil)
	chat := services.NewChatService(db, cache.NewPresence(rdb, time.Hour), hub, nil)

	wsH := NewWebSocketHandler(hub, chat, match, db, nil)
	msgH := NewHTTPMessageHandler(chat)
	roomH := NewRoomHandler(chat)
	healthH := NewHealthHandler(db, rdb)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())
	r.GET("/healthz", healthH.Check)
	wsGroup := r.Group("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb))
	wsGroup.GET("/chat/:room_id/:user_id", wsH.HandleChat)
	wsGroup.GET("/match", wsH.HandleMatch)
	r.GET("/api/v1/rooms/:id/messages", msgH.GetRoomMessages)
	r.POST("/api/v1/rooms/:id/messages", msgH.AppendMessage)
	r.GET("/api/v1/rooms/:id/presence", roomH.GetPresence)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, db: db, rdb: rdb, hub: hub}
}

func (e *testEnv) users(t *testing.T, names ...string) []uint {
	t.Helper()
	ids := make([]uint, len(names))
	for i, name := range names {
		u := &models.User{Username: name, Nickname: name}
		require.NoError(t, e.db.SaveUser(context.Background(), u))
		ids[i] = u.ID
	}
	return ids
}

func (e *testEnv) room(t *testing.T, members ...uint) uint {
	t.Helper()
	room := &models.Room{Title: "room", Type: models.RoomTypeGroup}
	require.NoError(t, e.db.CreateRoom(context.Background(), room, members))
	return room.ID
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(path), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *testEnv) dialMatch(t *testing.T) *websocket.Conn {
	return e.dial(t, "/ws/match")
}

func (e *testEnv) dialChat(t *testing.T, roomID, userID uint) *websocket.Conn {
	conn := e.dial(t, fmt.Sprintf("/ws/chat/%d/%d", roomID, userID))
	// Первым всегда приходит собственное presence-событие
	ev := readEvent(t, conn)
	require.Equal(t, "presence", ev["event"])
	return conn
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readUntil skips events until one with the given name arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev["event"] == event {
			return ev
		}
	}
	t.Fatalf("no %q event", event)
	return nil
}

// num reads a JSON number field as uint.
func num(t *testing.T, ev map[string]interface{}, key string) uint {
	t.Helper()
	v, ok := ev[key].(float64)
	require.True(t, ok, "field %q is not a number: %v", key, ev[key])
	return uint(v)
}
