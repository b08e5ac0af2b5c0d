package cache

import (
	"context"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// Presence tracks which users hold an open chat connection per room. It is
// advisory: a crashed process leaves its entries until the TTL runs out.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	return &Presence{rdb: rdb, ttl: ttl}
}

func (p *Presence) Join(ctx context.Context, roomID, userID uint) error {
	key := PresenceKey(roomID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, formatID(userID))
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	return err
}

func (p *Presence) Leave(ctx context.Context, roomID, userID uint) error {
	return p.rdb.SRem(ctx, PresenceKey(roomID), formatID(userID)).Err()
}

// Refresh pushes the room entry's expiry out by another TTL.
func (p *Presence) Refresh(ctx context.Context, roomID uint) error {
	return p.rdb.Expire(ctx, PresenceKey(roomID), p.ttl).Err()
}

// Snapshot returns the online user ids sorted ascending.
func (p *Presence) Snapshot(ctx context.Context, roomID uint) ([]uint, error) {
	vals, err := p.rdb.SMembers(ctx, PresenceKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(vals))
	for _, v := range vals {
		if id, err := parseID(v); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
