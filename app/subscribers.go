package app

import (
	"context"
	"log"
	"time"

	"promodeals-radar/cache"
	"promodeals-radar/database"
)

const (
	subscribersCacheKey = "subscribers:all"
	subscribersCacheTTL = 5 * time.Minute
)

// CachedSubscribers serves the fan-out recipient list from Redis when
// possible, falling back to the database. Admin chat IDs from the environment
// are always merged in so operators see what subscribers see.
type CachedSubscribers struct {
	repo   *database.DealRepository
	redis  *cache.RedisClient
	admins []string
}

// NewCachedSubscribers creates the recipient source
func NewCachedSubscribers(repo *database.DealRepository, redis *cache.RedisClient, admins []string) *CachedSubscribers {
	return &CachedSubscribers{repo: repo, redis: redis, admins: admins}
}

// ListRecipients returns the deduplicated union of subscribers and admins
func (s *CachedSubscribers) ListRecipients(ctx context.Context) ([]string, error) {
	var chatIDs []string
	if err := s.redis.Get(ctx, subscribersCacheKey, &chatIDs); err != nil {
		fromDB, err := s.repo.ListSubscribers(ctx)
		if err != nil {
			return nil, err
		}
		chatIDs = fromDB

		if err := s.redis.Set(ctx, subscribersCacheKey, chatIDs, subscribersCacheTTL); err != nil {
			log.Printf("⚠️  Failed to cache subscriber list: %v", err)
		}
	}

	return mergeUnique(chatIDs, s.admins), nil
}

// Invalidate drops the cached list, for use after subscription changes
func (s *CachedSubscribers) Invalidate(ctx context.Context) {
	if err := s.redis.Delete(ctx, subscribersCacheKey); err != nil {
		log.Printf("⚠️  Failed to invalidate subscriber cache: %v", err)
	}
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
