package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/domain"
)

func TestAddDish(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	dish, err := h.catalog.AddDish(ctx, DishInput{Name: "  Tom Yum ", Description: "hot and sour soup", Price: 9.5})
	require.NoError(t, err)
	assert.NotEmpty(t, dish.ID, "an id is assigned")
	assert.Equal(t, "Tom Yum", dish.Name)

	tasks := h.scheduler.take()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.Task{Kind: domain.TaskEmbedDish, Key: dish.ID}, tasks[0])

	require.NoError(t, h.runner.Run(ctx, tasks[0]))
	stored, err := h.catalog.GetDish(ctx, dish.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Embedding, 2)
	assert.Equal(t, "mock", stored.EmbeddingModel)
}

func TestAddDishRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	_, err := h.catalog.AddDish(ctx, DishInput{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.catalog.AddDish(ctx, DishInput{Name: "x", Price: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.catalog.AddDish(ctx, DishInput{Name: "x", Taste: &domain.TasteVector{Sweet: 3}})
	assert.ErrorIs(t, err, domain.ErrInvalidTaste)

	assert.Empty(t, h.scheduler.take())
}

func TestUpdateDishReembedsOnTextChange(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addEmbeddedDish(t, "a", []float32{1, 0})

	// Price only: embedding kept.
	dish, err := h.catalog.UpdateDish(ctx, "a", DishInput{Name: "dish a", Price: 12})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, dish.Embedding)
	assert.Empty(t, h.scheduler.take())

	h.mock.Set("dish a: now with chili", []float32{0, 1})
	dish, err = h.catalog.UpdateDish(ctx, "a", DishInput{Name: "dish a", Description: "now with chili", Price: 12})
	require.NoError(t, err)
	assert.False(t, dish.HasEmbedding())
	n, err := h.index.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, err := range h.runTasks(t) {
		require.NoError(t, err)
	}
	stored, err := h.catalog.GetDish(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, stored.Embedding)
}

func TestUpdateAndDeleteMissingDish(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	_, err := h.catalog.UpdateDish(ctx, "nope", DishInput{Name: "x"})
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(h.catalog.DeleteDish(ctx, "nope")))
}

func TestImportMenu(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	res, err := h.catalog.ImportMenu(ctx, domain.Menu{
		RestaurantID: "bistro",
		Dishes: []domain.Dish{
			{Name: "Soup"},
			{Name: "Tart", RestaurantID: "bakery"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Dishes, 2)
	assert.Equal(t, 2, res.Scheduled)
	assert.Equal(t, "bistro", res.Dishes[0].RestaurantID)
	assert.Equal(t, "bakery", res.Dishes[1].RestaurantID)
	assert.Len(t, h.scheduler.take(), 2)
}

func TestImportMenuIsAllOrNothingOnInvalidDish(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	_, err := h.catalog.ImportMenu(ctx, domain.Menu{
		RestaurantID: "bistro",
		Dishes:       []domain.Dish{{Name: "Soup"}, {Name: ""}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	all, err := h.catalog.ListDishes(ctx, DishFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListDishesFilters(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	spicy := &domain.TasteVector{Spicy: 0.9, Sour: 0.7}
	mild := &domain.TasteVector{Spicy: 0.1, Sour: 0.8}

	for _, in := range []DishInput{
		{ID: "1", Name: "Vindaloo", RestaurantID: "r1", Category: "Main", Taste: spicy},
		{ID: "2", Name: "Ceviche", RestaurantID: "r2", Category: "starter", Taste: mild},
		{ID: "3", Name: "Bread", RestaurantID: "r1", Category: "side"},
	} {
		_, err := h.catalog.AddDish(ctx, in)
		require.NoError(t, err)
	}

	names := func(f DishFilter) []string {
		dishes, err := h.catalog.ListDishes(ctx, f)
		require.NoError(t, err)
		out := make([]string, len(dishes))
		for i, d := range dishes {
			out[i] = d.Name
		}
		return out
	}

	assert.Equal(t, []string{"Bread", "Ceviche", "Vindaloo"}, names(DishFilter{}))
	assert.Equal(t, []string{"Bread", "Vindaloo"}, names(DishFilter{RestaurantID: "r1"}))
	assert.Equal(t, []string{"Vindaloo"}, names(DishFilter{Category: "main"}))
	assert.Equal(t, []string{"Vindaloo"}, names(DishFilter{Axes: []string{"spicy", "sour"}, Threshold: 0.5}))
	assert.Equal(t, []string{"Ceviche", "Vindaloo"}, names(DishFilter{Axes: []string{"sour"}, Threshold: 0.5}))

	_, err := h.catalog.ListDishes(ctx, DishFilter{Axes: []string{"crunchy"}})
	assert.ErrorIs(t, err, domain.ErrInvalidTaste)
}
