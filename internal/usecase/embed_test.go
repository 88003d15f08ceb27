package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/adapter/embedding"
	"palate/internal/adapter/memstore"
	"palate/internal/domain"
	"palate/internal/port"
)

// hookEmbedder runs before() ahead of delegating, to simulate edits that
// land while a provider call is in flight.
type hookEmbedder struct {
	port.Embedder
	before func()
}

func (e *hookEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.before != nil {
		e.before()
	}
	return e.Embedder.Embed(ctx, texts)
}

func TestDishEmbedderRejectsDimensionMismatch(t *testing.T) {
	store := memstore.NewMemoryStore()
	index, err := memstore.NewVectorIndex(3)
	require.NoError(t, err)

	_, err = NewDishEmbedder(store, index, embedding.NewMockEmbedder(4), 10, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedDishFailureKeepsPreviousEmbedding(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})

	h.mock.FailWith(errors.New("provider down"))
	err := h.embedder.EmbedDish(ctx, "a")
	require.Error(t, err)

	dish, err := h.store.GetDish("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, dish.Embedding)
}

func TestEmbedDishDropsResultForChangedText(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	require.NoError(t, h.store.PutDish(domain.Dish{ID: "a", Name: "old name"}))

	racy := &hookEmbedder{Embedder: h.mock, before: func() {
		d, _ := h.store.GetDish("a")
		d.Name = "new name"
		_ = h.store.PutDish(d)
	}}
	embedder, err := NewDishEmbedder(h.store, h.index, racy, 10, nil)
	require.NoError(t, err)

	require.NoError(t, embedder.EmbedDish(ctx, "a"))
	dish, err := h.store.GetDish("a")
	require.NoError(t, err)
	assert.False(t, dish.HasEmbedding())
	n, err := h.index.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEmbedMissingInBatches(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "done", []float32{1, 0})
	for _, id := range []string{"p", "q", "r", "s", "t"} {
		require.NoError(t, h.store.PutDish(domain.Dish{ID: id, Name: "dish " + id}))
	}

	embedder, err := NewDishEmbedder(h.store, h.index, h.mock, 2, h.recommender)
	require.NoError(t, err)

	before := h.mock.Calls()
	var last [2]int
	n, err := embedder.EmbedMissing(ctx, func(done, total int) { last = [2]int{done, total} })
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, h.mock.Calls()-before, "five dishes in batches of two")
	assert.Equal(t, [2]int{5, 5}, last)

	count, err := h.index.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}
