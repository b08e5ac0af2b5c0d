// Package matchmaking turns waiting tickets into matched groups.
//
// A match attempt is a two-phase reservation: ticket ids are popped from the
// per-size Redis queue under a per-size lock, then confirmed against the
// durable ticket rows in one transaction. Whatever the confirm step rejects
// goes back to the head of the queue, except tickets that are no longer
// waiting.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/cache"
	"github.com/thereayou/partychat/internal/database"
	"github.com/thereayou/partychat/internal/metrics"
)

// State of a single attempt.
type State string

const (
	StateLockPending State = "LOCK_PENDING"
	StatePopping     State = "POPPING"
	StateValidating  State = "VALIDATING"
	// COMMITTING happens inside the ConfirmMatch transaction, an attempt
	// leaves it either DONE or with an error.
	StateCommitting State = "COMMITTING"
	StateDone       State = "DONE"
)

const releaseTimeout = 2 * time.Second

var ErrInvalidPartySize = errors.New("party size must be at least 2")

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Queue interface {
	Push(ctx context.Context, key string, id uint) error
	PopMany(ctx context.Context, key string, n int) ([]uint, error)
	PushBack(ctx context.Context, key string, ids []uint) error
	Remove(ctx context.Context, key string, id uint) error
	Len(ctx context.Context, key string) (int64, error)
	PartySizes(ctx context.Context) ([]int, error)
}

type MatchStore interface {
	ConfirmMatch(ctx context.Context, ticketIDs []uint, partySize int, title string) (*database.MatchRecord, error)
}

// Result of TryMatch. Record is nil unless Outcome is metrics.OutcomeMatched.
type Result struct {
	Outcome string
	State   State
	Record  *database.MatchRecord
}

func (r *Result) Matched() bool {
	return r != nil && r.Record != nil
}

type Engine struct {
	locker  Locker
	queue   Queue
	store   MatchStore
	lockTTL time.Duration
	title   string
}

func NewEngine(locker Locker, queue Queue, store MatchStore, lockTTL time.Duration, title string) *Engine {
	return &Engine{locker: locker, queue: queue, store: store, lockTTL: lockTTL, title: title}
}

// TryMatch runs one attempt for partySize. Losing the lock or finding too few
// waiting tickets is a normal "no match" result, not an error. Errors are
// store failures; the lock is released on every path.
func (e *Engine) TryMatch(ctx context.Context, partySize int) (res *Result, err error) {
	if partySize < 2 {
		return nil, ErrInvalidPartySize
	}

	start := time.Now()
	res = &Result{State: StateLockPending}
	lg := log.With().Int("party_size", partySize).Logger()

	defer func() {
		if err != nil {
			res.Outcome = metrics.OutcomeError
		}
		metrics.MatchAttempts.WithLabelValues(res.Outcome).Inc()
		metrics.MatchAttemptDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			res = nil
		}
	}()

	lockKey := cache.LockKey(partySize)
	ok, err := e.locker.Acquire(ctx, lockKey, e.lockTTL)
	if err != nil {
		return res, fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !ok {
		lg.Debug().Msg("match lock busy")
		res.Outcome = metrics.OutcomeLockBusy
		return res, nil
	}
	defer func() {
		// Отпускаем лок даже если ctx уже отменён
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := e.locker.Release(rctx, lockKey); rerr != nil {
			lg.Error().Err(rerr).Msg("release match lock")
		}
	}()

	res.State = StatePopping
	queueKey := cache.QueueKey(partySize)
	popped, err := e.queue.PopMany(ctx, queueKey, partySize)
	if err != nil {
		e.pushBack(ctx, queueKey, popped)
		return res, fmt.Errorf("pop %s: %w", queueKey, err)
	}
	if len(popped) < partySize {
		e.pushBack(ctx, queueKey, popped)
		lg.Debug().Int("popped", len(popped)).Msg("not enough tickets queued")
		res.Outcome = metrics.OutcomeShortfall
		return res, nil
	}

	res.State = StateValidating
	rec, err := e.store.ConfirmMatch(ctx, popped, partySize, e.title)
	var unavailable *database.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		// Отменённые и уже сматченные тикеты в очередь не возвращаем
		e.pushBack(ctx, queueKey, unavailable.Waiting)
		lg.Debug().
			Uints("popped", popped).
			Uints("still_waiting", unavailable.Waiting).
			Msg("popped tickets no longer waiting")
		res.Outcome = metrics.OutcomeRejected
		return res, nil
	case err != nil:
		// Ничего не закоммичено, возвращаем всё
		e.pushBack(ctx, queueKey, popped)
		return res, fmt.Errorf("confirm match: %w", err)
	}

	res.State = StateDone
	res.Outcome = metrics.OutcomeMatched
	res.Record = rec
	metrics.MatchedTickets.Add(float64(len(rec.TicketIDs)))
	lg.Info().Uint("room_id", rec.Room.ID).Uints("ticket_ids", rec.TicketIDs).Msg("match committed")
	return res, nil
}

func (e *Engine) pushBack(ctx context.Context, key string, ids []uint) {
	if len(ids) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := e.queue.PushBack(pctx, key, ids); err != nil {
		log.Error().Err(err).Str("queue", key).Uints("ticket_ids", ids).Msg("push back tickets")
	}
}
