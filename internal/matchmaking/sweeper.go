package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thereayou/partychat/internal/cache"
)

// Sweep retries every party size whose queue holds at least a full party.
// Attempts that lost the lock race on join get picked up here. A failing
// size does not stop the others; its error is returned joined with the rest.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	sizes, err := s.queue.PartySizes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("match sweep: list queues")
		return 0, err
	}

	matched := 0
	var errs []error
	for _, size := range sizes {
		if size < 2 {
			continue
		}
		n, err := s.sweepSize(ctx, size)
		matched += n
		if err != nil {
			log.Error().Err(err).Int("party_size", size).Msg("match sweep")
			errs = append(errs, err)
		}
	}
	return matched, errors.Join(errs...)
}

func (s *Service) sweepSize(ctx context.Context, size int) (int, error) {
	matched := 0
	for {
		n, err := s.queue.Len(ctx, cache.QueueKey(size))
		if err != nil {
			return matched, err
		}
		if n < int64(size) {
			return matched, nil
		}
		res, err := s.Attempt(ctx, size)
		if err != nil {
			return matched, err
		}
		if !res.Matched() {
			// лок занят или тикеты отбракованы, попробуем на следующем тике
			return matched, nil
		}
		matched++
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ошибки по размерам уже залогированы в Sweep
			if n, _ := s.Sweep(ctx); n > 0 {
				log.Info().Int("matches", n).Msg("match sweep")
			}
		}
	}
}
