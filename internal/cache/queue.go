package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// TicketQueue is a FIFO of ticket ids per Redis list. New ids go in on the
// left, the head is the right end, so LPUSH/RPOP gives FIFO and RPUSH puts
// ids back at the head.
type TicketQueue struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTicketQueue(rdb *redis.Client, ttl time.Duration) *TicketQueue {
	return &TicketQueue{rdb: rdb, ttl: ttl}
}

// Push appends id at the tail and refreshes the queue TTL.
func (q *TicketQueue) Push(ctx context.Context, key string, id uint) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, formatID(id))
		pipe.Expire(ctx, key, q.ttl)
		return nil
	})
	return err
}

// PopMany removes up to n ids from the head, oldest first.
func (q *TicketQueue) PopMany(ctx context.Context, key string, n int) ([]uint, error) {
	if n <= 0 {
		return nil, nil
	}

	cmds, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := 0; i < n; i++ {
			pipe.RPop(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	ids := make([]uint, 0, n)
	for _, cmd := range cmds {
		sc, ok := cmd.(*redis.StringCmd)
		if !ok {
			continue
		}
		v, err := sc.Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return ids, err
		}
		id, err := parseID(v)
		if err != nil {
			// мусор в очереди просто выбрасываем
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PushBack re-inserts ids at the head keeping their relative order, so the
// next PopMany returns ids[0] first.
func (q *TicketQueue) PushBack(ctx context.Context, key string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	vals := make([]interface{}, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		vals = append(vals, formatID(ids[i]))
	}
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, q.ttl)
		return nil
	})
	return err
}

// Remove drops every occurrence of id. Removing an id that is not queued is a no-op.
func (q *TicketQueue) Remove(ctx context.Context, key string, id uint) error {
	return q.rdb.LRem(ctx, key, 0, formatID(id)).Err()
}

func (q *TicketQueue) Len(ctx context.Context, key string) (int64, error) {
	return q.rdb.LLen(ctx, key).Result()
}

// Snapshot returns the queued ids head first without modifying the queue.
func (q *TicketQueue) Snapshot(ctx context.Context, key string) ([]uint, error) {
	vals, err := q.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		if id, err := parseID(vals[i]); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PartySizes lists the party sizes that currently have a queue key.
func (q *TicketQueue) PartySizes(ctx context.Context) ([]int, error) {
	var (
		sizes  []int
		cursor uint64
	)
	for {
		keys, next, err := q.rdb.Scan(ctx, cursor, queueKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if n, ok := partySizeFromQueueKey(k); ok {
				sizes = append(sizes, n)
			}
		}
		if next == 0 {
			return sizes, nil
		}
		cursor = next
	}
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	return uint(n), err
}
