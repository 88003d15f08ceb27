package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/metrics"
	"palate/internal/port"
)

// Weights are the per-rating contributions to a profile.
type Weights struct {
	Like    float64
	Dislike float64
}

// DefaultWeights gives likes full weight and dislikes half weight in the
// opposite direction.
func DefaultWeights() Weights {
	return Weights{Like: 1.0, Dislike: -0.5}
}

// ProfileAggregator recomputes a user's profile embedding from their ratings.
type ProfileAggregator struct {
	history   port.HistoryStore
	dishes    port.DishStore
	users     port.UserStore
	dimension int
	weights   Weights
	now       func() time.Time
}

func NewProfileAggregator(history port.HistoryStore, dishes port.DishStore, users port.UserStore, dimension int, weights Weights) (*ProfileAggregator, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dimension)
	}
	return &ProfileAggregator{
		history:   history,
		dishes:    dishes,
		users:     users,
		dimension: dimension,
		weights:   weights,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Recompute rebuilds the profile as the weighted mean of the embeddings of
// every rated dish. Dishes that are gone or have no embedding are skipped and
// do not count toward the mean. With no contributing dish nothing is written
// and ok is false. A write computed from an older history than the stored
// profile is rejected with ErrStaleProfile.
func (u *ProfileAggregator) Recompute(ctx context.Context, userID string) (domain.ProfileEmbedding, bool, error) {
	log := logging.Ctx(ctx).With().Str("user", userID).Logger()

	h, err := u.history.GetUserHistory(userID)
	if err != nil {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.ProfileEmbedding{}, false, fmt.Errorf("load history for %s: %w", userID, err)
	}

	ids := make([]string, len(h.Entries))
	for i, e := range h.Entries {
		ids[i] = e.DishID
	}
	dishes, err := u.dishes.GetDishes(ids)
	if err != nil {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.ProfileEmbedding{}, false, fmt.Errorf("load rated dishes for %s: %w", userID, err)
	}

	inputs := make([]domain.WeightedVector, 0, len(h.Entries))
	for _, e := range h.Entries {
		dish, ok := dishes[e.DishID]
		if !ok || !dish.HasEmbedding() {
			continue
		}
		inputs = append(inputs, domain.WeightedVector{Vector: dish.Embedding, Weight: u.weight(e.Liked)})
	}

	if len(inputs) == 0 {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeEmpty).Inc()
		log.Debug().Int("ratings", len(h.Entries)).Msg("no rated dish has an embedding, profile left unset")
		return domain.ProfileEmbedding{}, false, nil
	}

	vector, err := domain.WeightedMean(inputs, u.dimension)
	if err != nil {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.ProfileEmbedding{}, false, fmt.Errorf("aggregate profile for %s: %w", userID, err)
	}

	saved, err := u.users.SaveProfile(domain.ProfileEmbedding{
		UserID:         userID,
		Vector:         vector,
		Contributing:   len(inputs),
		SourceRevision: h.Revision,
		UpdatedAt:      u.now(),
	})
	if errors.Is(err, domain.ErrStaleProfile) {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeStale).Inc()
		log.Info().Uint64("revision", h.Revision).Msg("discarding profile computed from outdated history")
		return domain.ProfileEmbedding{}, false, err
	}
	if err != nil {
		metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.ProfileEmbedding{}, false, fmt.Errorf("save profile for %s: %w", userID, err)
	}

	metrics.ProfileRecomputes.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.ProfileContributors.Observe(float64(len(inputs)))
	log.Debug().Int("contributing", len(inputs)).Uint64("version", saved.Version).Msg("profile recomputed")
	return saved, true, nil
}

// RecomputeAll recomputes the profile of every user who has rated a dish.
// It returns how many profiles were written.
func (u *ProfileAggregator) RecomputeAll(ctx context.Context, progress ProgressFunc) (int, error) {
	userIDs, err := u.history.ListRaters()
	if err != nil {
		return 0, err
	}
	written := 0
	for i, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		_, ok, err := u.Recompute(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrStaleProfile) {
			logging.Ctx(ctx).Error().Err(err).Str("user", id).Msg("profile recompute failed")
		}
		if ok {
			written++
		}
		if progress != nil {
			progress(i+1, len(userIDs))
		}
	}
	return written, nil
}

func (u *ProfileAggregator) weight(liked bool) float64 {
	if liked {
		return u.weights.Like
	}
	return u.weights.Dislike
}
