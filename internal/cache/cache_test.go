package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLocker_AcquireIsExclusive(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	a := NewLocker(rdb)
	b := NewLocker(rdb)

	ok, err := a.Acquire(ctx, LockKey(2), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, LockKey(2), 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	ok, err = b.Acquire(ctx, LockKey(3), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "other party sizes are independent")
}

func TestLocker_ReleaseIsUnconditional(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	a := NewLocker(rdb)
	b := NewLocker(rdb)

	ok, err := a.Acquire(ctx, LockKey(2), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, LockKey(2)))

	ok, err = b.Acquire(ctx, LockKey(2), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ExpiresAfterTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	a := NewLocker(rdb)
	ok, err := a.Acquire(ctx, LockKey(4), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	val, err := mr.Get(LockKey(4))
	require.NoError(t, err)
	assert.Equal(t, a.holder, val)

	mr.FastForward(6 * time.Second)

	ok, err = NewLocker(rdb).Acquire(ctx, LockKey(4), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "crashed holder heals after ttl")
}

func TestTicketQueue_FIFO(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	q := NewTicketQueue(rdb, time.Hour)
	key := QueueKey(3)

	for _, id := range []uint{10, 11, 12, 13} {
		require.NoError(t, q.Push(ctx, key, id))
	}

	snap, err := q.Snapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []uint{10, 11, 12, 13}, snap)

	got, err := q.PopMany(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{10, 11, 12}, got)

	got, err = q.PopMany(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{13}, got, "returns fewer when the queue runs dry")

	got, err = q.PopMany(ctx, key, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTicketQueue_PushBackRestoresHeadOrder(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	q := NewTicketQueue(rdb, time.Hour)
	key := QueueKey(2)

	for _, id := range []uint{1, 2, 3} {
		require.NoError(t, q.Push(ctx, key, id))
	}

	popped, err := q.PopMany(ctx, key, 2)
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2}, popped)

	require.NoError(t, q.Push(ctx, key, 4))
	require.NoError(t, q.PushBack(ctx, key, popped))

	snap, err := q.Snapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3, 4}, snap)
}

func TestTicketQueue_PushRefreshesTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	q := NewTicketQueue(rdb, time.Minute)
	key := QueueKey(2)

	require.NoError(t, q.Push(ctx, key, 1))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(key), "abandoned queue expires")
}

func TestTicketQueue_Remove(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	q := NewTicketQueue(rdb, time.Hour)
	key := QueueKey(2)

	for _, id := range []uint{5, 6, 5, 7} {
		require.NoError(t, q.Push(ctx, key, id))
	}
	require.NoError(t, q.Remove(ctx, key, 5))
	require.NoError(t, q.Remove(ctx, key, 99))

	snap, err := q.Snapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []uint{6, 7}, snap)
}

func TestTicketQueue_PartySizes(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	q := NewTicketQueue(rdb, time.Hour)

	require.NoError(t, q.Push(ctx, QueueKey(2), 1))
	require.NoError(t, q.Push(ctx, QueueKey(5), 2))
	require.NoError(t, rdb.Set(ctx, LockKey(3), "x", 0).Err())

	sizes, err := q.PartySizes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 5}, sizes)
}

func TestPresence_JoinLeaveSnapshot(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb, time.Hour)

	for _, uid := range []uint{3, 1, 2, 4} {
		require.NoError(t, p.Join(ctx, 7, uid))
	}
	require.NoError(t, p.Join(ctx, 7, 1))
	require.NoError(t, p.Leave(ctx, 7, 2))
	require.NoError(t, p.Leave(ctx, 7, 4))

	online, err := p.Snapshot(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, online)

	other, err := p.Snapshot(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, time.Hour, mr.TTL(PresenceKey(7)))
}

func TestPresence_StaleEntriesExpire(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	p := NewPresence(rdb, time.Minute)

	require.NoError(t, p.Join(ctx, 1, 42))
	mr.FastForward(30 * time.Second)
	require.NoError(t, p.Refresh(ctx, 1))
	mr.FastForward(45 * time.Second)

	online, err := p.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{42}, online, "refresh extends the entry")

	mr.FastForward(2 * time.Minute)
	online, err = p.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, online)
}
