package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/metrics"
	"github.com/thereayou/partychat/internal/models"
)

func TestTryMatch_FullPartyMatchesIntoOneRoom(t *testing.T) {
	for _, size := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			names := make([]string, size)
			for i := range names {
				names[i] = fmt.Sprintf("u%d", i)
			}
			ids := f.queueTickets(t, size, names...)

			res, err := f.engine.TryMatch(ctx, size)
			require.NoError(t, err)
			require.True(t, res.Matched())
			assert.Equal(t, metrics.OutcomeMatched, res.Outcome)
			assert.Equal(t, StateDone, res.State)
			assert.Equal(t, ids, res.Record.TicketIDs)

			for _, id := range ids {
				ticket, err := f.db.GetTicket(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, models.TicketMatched, ticket.Status)
				require.NotNil(t, ticket.RoomID)
				assert.Equal(t, res.Record.Room.ID, *ticket.RoomID)
			}
			assert.Empty(t, f.snapshot(t, size))
			assert.True(t, f.lockFree(t, size))
		})
	}
}

func TestTryMatch_FIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.queueTickets(t, 2, "a", "b", "c", "d", "e")

	first, err := f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	require.True(t, first.Matched())
	assert.Equal(t, ids[:2], first.Record.TicketIDs)

	second, err := f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	require.True(t, second.Matched())
	assert.Equal(t, ids[2:4], second.Record.TicketIDs)
	assert.NotEqual(t, first.Record.Room.ID, second.Record.Room.ID)

	third, err := f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	assert.False(t, third.Matched())
	assert.Equal(t, metrics.OutcomeShortfall, third.Outcome)
	assert.Equal(t, ids[4:], f.snapshot(t, 2))
}

func TestTryMatch_ShortfallRestoresQueue(t *testing.T) {
	f := newFixture(t)
	ids := f.queueTickets(t, 3, "a", "b")

	res, err := f.engine.TryMatch(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, res.Matched())
	assert.Equal(t, StatePopping, res.State)
	assert.Equal(t, ids, f.snapshot(t, 3))
	assert.True(t, f.lockFree(t, 3))
}

func TestTryMatch_LockBusyLeavesQueueAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.queueTickets(t, 2, "a", "b")

	other := cache.NewLocker(f.rdb)
	ok, err := other.Acquire(ctx, cache.LockKey(2), 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeLockBusy, res.Outcome)
	assert.Equal(t, StateLockPending, res.State)
	assert.Equal(t, ids, f.snapshot(t, 2))

	// Лок другого держателя истёк
	f.mr.FastForward(6 * time.Second)
	res, err = f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	assert.True(t, res.Matched())
}

func TestTryMatch_CancelledAfterPopIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.queueTickets(t, 2, "a", "b", "c")

	// Владелец отменил тикет, но id ещё в очереди
	ok, err := f.db.CancelIfWaiting(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	assert.False(t, res.Matched())
	assert.Equal(t, metrics.OutcomeRejected, res.Outcome)
	assert.Equal(t, StateValidating, res.State)
	assert.Equal(t, []uint{ids[1], ids[2]}, f.snapshot(t, 2), "survivor back at the head, cancelled id gone")
	assert.True(t, f.lockFree(t, 2))

	res, err = f.engine.TryMatch(ctx, 2)
	require.NoError(t, err)
	require.True(t, res.Matched())
	assert.Equal(t, []uint{ids[1], ids[2]}, res.Record.TicketIDs)

	cancelled, err := f.db.GetTicket(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, cancelled.Status)
}

func TestTryMatch_StoreErrorRestoresQueueAndLock(t *testing.T) {
	f := newFixture(t)
	ids := f.queueTickets(t, 2, "a", "b")

	engine := NewEngine(f.locker, f.queue, failingStore{}, 5*time.Second, "room")
	res, err := engine.TryMatch(context.Background(), 2)
	require.ErrorIs(t, err, errStoreDown)
	assert.Nil(t, res)

	assert.Equal(t, ids, f.snapshot(t, 2))
	assert.True(t, f.lockFree(t, 2))
}

func TestTryMatch_InvalidPartySize(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.TryMatch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidPartySize)
}

func TestTryMatch_ConcurrentAttemptsNeverDoubleMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("user%d", i)
	}
	ids := f.queueTickets(t, 2, names...)

	var (
		mu      sync.Mutex
		matched = map[uint]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				res, err := f.engine.TryMatch(ctx, 2)
				if err != nil {
					t.Error(err)
					return
				}
				if res.Matched() {
					mu.Lock()
					for _, id := range res.Record.TicketIDs {
						matched[id]++
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// Добиваем то, что осталось из-за занятого лока
	for {
		res, err := f.engine.TryMatch(ctx, 2)
		require.NoError(t, err)
		if !res.Matched() {
			break
		}
		for _, id := range res.Record.TicketIDs {
			matched[id]++
		}
	}

	assert.Len(t, matched, len(ids))
	for id, n := range matched {
		assert.Equal(t, 1, n, "ticket %d matched %d times", id, n)
	}
	assert.Empty(t, f.snapshot(t, 2))
}
