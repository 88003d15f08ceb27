package cache

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"palate/internal/domain"
	"palate/internal/metrics"
)

// Key identifies one recommendation response. ProfileVersion and
// HistoryRevision make entries stale as soon as the user's state moves.
type Key struct {
	UserID          string
	Limit           int
	ProfileVersion  uint64
	HistoryRevision uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.UserID, k.Limit, k.ProfileVersion, k.HistoryRevision)
}

// RecommendationCache is a size-bounded LRU of recommendation lists with a TTL.
// Entries also go stale when the catalogue generation moves on; Purge does that.
type RecommendationCache struct {
	lru *expirable.LRU[Key, []domain.Recommendation]
}

// NewRecommendationCache returns nil when size is not positive; a nil cache
// is valid and never hits.
func NewRecommendationCache(size int, ttl time.Duration) *RecommendationCache {
	if size <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RecommendationCache{lru: expirable.NewLRU[Key, []domain.Recommendation](size, nil, ttl)}
}

func (c *RecommendationCache) Get(key Key) ([]domain.Recommendation, bool) {
	if c == nil {
		return nil, false
	}
	recs, ok := c.lru.Get(key)
	if ok {
		metrics.RecommendCache.WithLabelValues("hit").Inc()
		return slices.Clone(recs), true
	}
	metrics.RecommendCache.WithLabelValues("miss").Inc()
	return nil, false
}

func (c *RecommendationCache) Put(key Key, recs []domain.Recommendation) {
	if c == nil {
		return
	}
	c.lru.Add(key, slices.Clone(recs))
}

// Purge drops every entry. Called when dishes are deleted or re-embedded.
func (c *RecommendationCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *RecommendationCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
