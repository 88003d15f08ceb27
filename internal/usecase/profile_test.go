package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/domain"
)

func TestEndToEndScenario(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.addEmbeddedDish(t, "A", []float32{1, 0, 0})
	h.addEmbeddedDish(t, "B", []float32{0, 1, 0})
	h.addEmbeddedDish(t, "C", []float32{1, 0, 0})

	_, err := h.ratings.RateDish(ctx, "U", "A", true)
	require.NoError(t, err)
	_, err = h.ratings.RateDish(ctx, "U", "B", false)
	require.NoError(t, err)
	for _, err := range h.runTasks(t) {
		require.NoError(t, err)
	}

	profile, ok, err := h.store.GetProfile("U")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.25, 0}, profile.Vector)
	assert.Equal(t, 2, profile.Contributing)

	recs, err := h.recommender.Recommend(ctx, "U", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "C", recs[0].Dish.ID)
}

func TestAggregationIsWeightedMean(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{2, 0})
	h.addEmbeddedDish(t, "b", []float32{0, 4})
	h.addEmbeddedDish(t, "c", []float32{4, 4})

	for _, r := range []struct {
		dish  string
		liked bool
	}{{"a", true}, {"b", false}, {"c", true}} {
		_, err := h.ratings.RateDish(ctx, "u", r.dish, r.liked)
		require.NoError(t, err)
	}
	h.scheduler.take()

	profile, ok, err := h.profiles.Recompute(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	// x: (2 + 0 + 4) / 3, y: (0 - 2 + 4) / 3
	assert.InDeltaSlice(t, []float32{2, 2.0 / 3}, profile.Vector, 1e-6)
}

func TestAggregationWeightsAreConfigurable(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	h.addEmbeddedDish(t, "b", []float32{0, 1})

	agg, err := NewProfileAggregator(h.store, h.store, h.store, 2, Weights{Like: 2, Dislike: -1})
	require.NoError(t, err)

	_, err = h.ratings.RateDish(ctx, "u", "a", true)
	require.NoError(t, err)
	_, err = h.ratings.RateDish(ctx, "u", "b", false)
	require.NoError(t, err)

	profile, ok, err := agg.Recompute(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, -0.5}, profile.Vector)
}

func TestAggregationSkipsDishesWithoutEmbedding(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	require.NoError(t, h.store.PutDish(domain.Dish{ID: "raw", Name: "not yet embedded"}))
	require.NoError(t, h.store.PutDish(domain.Dish{ID: "gone", Name: "soon deleted"}))

	for _, id := range []string{"a", "raw", "gone"} {
		_, err := h.ratings.RateDish(ctx, "u", id, true)
		require.NoError(t, err)
	}
	require.NoError(t, h.store.DeleteDish("gone"))

	profile, ok, err := h.profiles.Recompute(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, profile.Vector, "divisor counts only contributing dishes")
	assert.Equal(t, 1, profile.Contributing)
}

func TestAggregationLeavesProfileAbsent(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	_, ok, err := h.profiles.Recompute(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.store.PutDish(domain.Dish{ID: "raw", Name: "raw"}))
	_, err = h.ratings.RateDish(ctx, "u", "raw", true)
	require.NoError(t, err)

	_, ok, err = h.profiles.Recompute(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)

	_, stored, err := h.store.GetProfile("u")
	require.NoError(t, err)
	assert.False(t, stored, "no zero vector is written")
}

func TestStaleRecomputeIsRejected(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	h.addEmbeddedDish(t, "b", []float32{0, 1})

	_, err := h.ratings.RateDish(ctx, "u", "a", true)
	require.NoError(t, err)
	_, err = h.ratings.RateDish(ctx, "u", "b", true)
	require.NoError(t, err)

	latest, ok, err := h.profiles.Recompute(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)

	// A recompute that read the history before the second rating finishes late.
	_, err = h.store.SaveProfile(domain.ProfileEmbedding{UserID: "u", Vector: []float32{1, 0}, SourceRevision: 1})
	assert.ErrorIs(t, err, domain.ErrStaleProfile)

	stored, _, err := h.store.GetProfile("u")
	require.NoError(t, err)
	assert.Equal(t, latest.Vector, stored.Vector)

	// The task runner treats a lost race as success.
	require.NoError(t, h.runner.Run(ctx, domain.Task{Kind: domain.TaskRecomputeProfile, Key: "u"}))
}

func TestAggregatorRejectsBadDimension(t *testing.T) {
	h := newHarness(t, 2)
	_, err := NewProfileAggregator(h.store, h.store, h.store, 0, DefaultWeights())
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	require.NoError(t, h.store.PutDish(domain.Dish{ID: "odd", Name: "odd", Embedding: []float32{1, 2, 3}}))
	_, err = h.ratings.RateDish(context.Background(), "u", "odd", true)
	require.NoError(t, err)
	_, _, err = h.profiles.Recompute(context.Background(), "u")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRecomputeAll(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	for _, u := range []string{"u1", "u2"} {
		_, err := h.ratings.RateDish(ctx, u, "a", true)
		require.NoError(t, err)
	}
	h.scheduler.take()

	var calls int
	n, err := h.profiles.RecomputeAll(ctx, func(done, total int) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, calls)
}
