package matchmaking

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/models"
)

type fixture struct {
	db     *database.Database
	rdb    *redis.Client
	mr     *miniredis.Miniredis
	locker *cache.Locker
	queue  *cache.TicketQueue
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "mm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		db:     db,
		rdb:    rdb,
		mr:     mr,
		locker: cache.NewLocker(rdb),
		queue:  cache.NewTicketQueue(rdb, time.Hour),
	}
	f.engine = NewEngine(f.locker, f.queue, db, 5*time.Second, "매칭 채팅방")
	return f
}

// queueTickets creates a user and a WAITING ticket per name and pushes the
// tickets in order.
func (f *fixture) queueTickets(t *testing.T, partySize int, names ...string) []uint {
	t.Helper()
	ctx := context.Background()

	ids := make([]uint, 0, len(names))
	for _, name := range names {
		u := &models.User{Username: name, Nickname: name}
		require.NoError(t, f.db.SaveUser(ctx, u))
		ticket, _, err := f.db.CreateTicket(ctx, u.ID, partySize)
		require.NoError(t, err)
		require.NoError(t, f.queue.Push(ctx, cache.QueueKey(partySize), ticket.ID))
		ids = append(ids, ticket.ID)
	}
	return ids
}

func (f *fixture) snapshot(t *testing.T, partySize int) []uint {
	t.Helper()
	ids, err := f.queue.Snapshot(context.Background(), cache.QueueKey(partySize))
	require.NoError(t, err)
	return ids
}

func (f *fixture) lockFree(t *testing.T, partySize int) bool {
	t.Helper()
	ok, err := cache.NewLocker(f.rdb).Acquire(context.Background(), cache.LockKey(partySize), time.Second)
	require.NoError(t, err)
	if ok {
		_ = f.locker.Release(context.Background(), cache.LockKey(partySize))
	}
	return ok
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) ConfirmMatch(context.Context, []uint, int, string) (*database.MatchRecord, error) {
	return nil, errStoreDown
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]interface{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]interface{})}
}

func (n *recordingNotifier) Publish(_ context.Context, group string, v interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[group] = append(n.events[group], v)
	return nil
}

func (n *recordingNotifier) get(group string) []interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]interface{}(nil), n.events[group]...)
}

type published struct {
	queue string
	event interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{queue: queue, event: event})
	return nil
}

// sizeFailingStore fails ConfirmMatch for one party size and delegates the rest.
type sizeFailingStore struct {
	MatchStore
	size int
}

func (s sizeFailingStore) ConfirmMatch(ctx context.Context, ids []uint, partySize int, title string) (*database.MatchRecord, error) {
	if partySize == s.size {
		return nil, errStoreDown
	}
	return s.MatchStore.ConfirmMatch(ctx, ids, partySize, title)
}
