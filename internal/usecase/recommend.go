package usecase

import (
	"context"
	"fmt"

	"palate/internal/adapter/cache"
	"palate/internal/domain"
	"palate/internal/metrics"
	"palate/internal/port"
)

type RecommendConfig struct {
	DefaultLimit int
	MaxLimit     int
	Overfetch    int // extra neighbours fetched to survive filtering of rated dishes
}

// Recommender returns the unrated dishes nearest to a user's profile embedding.
type Recommender struct {
	users   port.UserStore
	history port.HistoryStore
	dishes  port.DishStore
	index   port.VectorIndex
	cache   *cache.RecommendationCache
	cfg     RecommendConfig
}

func NewRecommender(users port.UserStore, history port.HistoryStore, dishes port.DishStore, index port.VectorIndex, c *cache.RecommendationCache, cfg RecommendConfig) *Recommender {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &Recommender{
		users:   users,
		history: history,
		dishes:  dishes,
		index:   index,
		cache:   c,
		cfg:     cfg,
	}
}

// Recommend returns up to limit dishes, nearest first. A user without a
// profile gets an empty list. Fewer than limit results are returned when
// filtering leaves fewer; the list is never padded.
func (u *Recommender) Recommend(ctx context.Context, userID string, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = u.cfg.DefaultLimit
	}
	limit = min(limit, u.cfg.MaxLimit)

	profile, ok, err := u.users.GetProfile(userID)
	if err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}
	if !ok {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return []domain.Recommendation{}, nil
	}

	h, err := u.history.GetUserHistory(userID)
	if err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}

	key := cache.Key{UserID: userID, Limit: limit, ProfileVersion: profile.Version, HistoryRevision: h.Revision}
	if recs, hit := u.cache.Get(key); hit {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeOK).Inc()
		return recs, nil
	}

	neighbours, err := u.index.Search(profile.Vector, limit+u.cfg.Overfetch)
	if err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("search neighbours for %s: %w", userID, err)
	}

	rated := h.DishIDs()
	candidates := make([]port.VectorResult, 0, len(neighbours))
	ids := make([]string, 0, len(neighbours))
	for _, n := range neighbours {
		if _, seen := rated[n.ID]; seen {
			continue
		}
		candidates = append(candidates, n)
		ids = append(ids, n.ID)
	}

	found, err := u.dishes.GetDishes(ids)
	if err != nil {
		metrics.Recommendations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("load candidate dishes: %w", err)
	}

	recs := make([]domain.Recommendation, 0, limit)
	for _, c := range candidates {
		if len(recs) == limit {
			break
		}
		dish, ok := found[c.ID]
		if !ok {
			continue
		}
		dish.Embedding = nil
		recs = append(recs, domain.Recommendation{Dish: dish, Distance: c.Distance})
	}

	u.cache.Put(key, recs)
	metrics.Recommendations.WithLabelValues(metrics.OutcomeOK).Inc()
	return recs, nil
}

// Purge drops cached recommendations.
func (u *Recommender) Purge() {
	u.cache.Purge()
}
