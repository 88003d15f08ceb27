package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recIDs(t *testing.T, h *harness, user string, limit int) []string {
	t.Helper()
	recs, err := h.recommender.Recommend(context.Background(), user, limit)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.Dish.ID
		assert.Nil(t, r.Dish.Embedding, "embeddings are not returned to callers")
	}
	return ids
}

func TestRecommendWithoutProfileIsEmpty(t *testing.T) {
	h := newHarness(t, 2)
	h.addEmbeddedDish(t, "a", []float32{1, 0})

	recs, err := h.recommender.Recommend(context.Background(), "stranger", 5)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendExcludesRatedAndOrdersByDistance(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "liked", []float32{1, 0})
	h.addEmbeddedDish(t, "near", []float32{0.9, 0.1})
	h.addEmbeddedDish(t, "mid", []float32{0.5, 0.5})
	h.addEmbeddedDish(t, "far", []float32{0, 1})

	_, err := h.ratings.RateDish(ctx, "u", "liked", true)
	require.NoError(t, err)
	for _, err := range h.runTasks(t) {
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"near", "mid", "far"}, recIDs(t, h, "u", 10))
	assert.Equal(t, []string{"near"}, recIDs(t, h, "u", 1))

	recs, err := h.recommender.Recommend(ctx, "u", 3)
	require.NoError(t, err)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Distance, recs[i].Distance)
	}
}

func TestRecommendReturnsFewerWhenEverythingIsRated(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	h.addEmbeddedDish(t, "b", []float32{0, 1})
	for _, id := range []string{"a", "b"} {
		_, err := h.ratings.RateDish(ctx, "u", id, true)
		require.NoError(t, err)
	}
	h.runTasks(t)

	assert.Empty(t, recIDs(t, h, "u", 5))
}

func TestRecommendLimitDefaultsAndCap(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "seed", []float32{1, 0})
	for i := 0; i < 60; i++ {
		h.addEmbeddedDish(t, fmt.Sprintf("d%02d", i), []float32{1, float32(i) / 100})
	}
	_, err := h.ratings.RateDish(ctx, "u", "seed", true)
	require.NoError(t, err)
	h.runTasks(t)

	assert.Len(t, recIDs(t, h, "u", 0), 10)
	assert.Len(t, recIDs(t, h, "u", 500), 50)
}

func TestRecommendCacheFollowsStateChanges(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})
	h.addEmbeddedDish(t, "b", []float32{0.9, 0.1})
	h.addEmbeddedDish(t, "c", []float32{0, 1})
	_, err := h.ratings.RateDish(ctx, "u", "a", true)
	require.NoError(t, err)
	h.runTasks(t)

	assert.Equal(t, []string{"b", "c"}, recIDs(t, h, "u", 5))
	assert.Equal(t, 1, h.cache.Len())
	assert.Equal(t, []string{"b", "c"}, recIDs(t, h, "u", 5))

	// Deleting a dish purges cached lists.
	require.NoError(t, h.catalog.DeleteDish(ctx, "b"))
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, []string{"c"}, recIDs(t, h, "u", 5))

	// A new rating moves the history revision, so the old entry is not reused.
	_, err = h.ratings.RateDish(ctx, "u", "c", false)
	require.NoError(t, err)
	assert.Empty(t, recIDs(t, h, "u", 5))
}
