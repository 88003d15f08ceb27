package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palate/internal/domain"
)

func TestSetTasteNormalizesAndCreatesUser(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	user, err := h.users.SetTaste(ctx, "u", domain.TasteVector{Sweet: 5, Salty: 1, Sour: 3, Bitter: 1, Umami: 2, Spicy: 4}, 5)
	require.NoError(t, err)
	require.NotNil(t, user.Taste)
	assert.Equal(t, domain.TasteVector{Sweet: 1, Salty: 0, Sour: 0.5, Bitter: 0, Umami: 0.25, Spicy: 0.75}, *user.Taste)

	stored, err := h.users.GetUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, user.Taste, stored.Taste)

	_, err = h.users.SetTaste(ctx, "u", domain.TasteVector{Sweet: 0.5}, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidTaste)
	_, err = h.users.SetTaste(ctx, "u", domain.TasteVector{Sweet: 2}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidTaste)
	_, err = h.users.SetTaste(ctx, "", domain.TasteVector{}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateUserAssignsID(t *testing.T) {
	h := newHarness(t, 2)
	user, err := h.users.CreateUser(context.Background(), domain.User{Name: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestTasteMatch(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	_, err := h.catalog.AddDish(ctx, DishInput{ID: "d", Name: "Laksa", Taste: &domain.TasteVector{Spicy: 1, Umami: 1}})
	require.NoError(t, err)
	_, err = h.catalog.AddDish(ctx, DishInput{ID: "plain", Name: "Rice"})
	require.NoError(t, err)

	_, err = h.matcher.Match(ctx, "u", "d")
	assert.True(t, IsNotFound(err))

	_, err = h.users.CreateUser(ctx, domain.User{ID: "u"})
	require.NoError(t, err)
	_, err = h.matcher.Match(ctx, "u", "d")
	assert.ErrorIs(t, err, domain.ErrNoTasteProfile)

	_, err = h.users.SetTaste(ctx, "u", domain.TasteVector{Spicy: 1, Umami: 0.4}, 1)
	require.NoError(t, err)
	m, err := h.matcher.Match(ctx, "u", "d")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, m.Similarity, 1e-9)
	assert.Equal(t, 90, m.Percent)

	_, err = h.matcher.Match(ctx, "u", "plain")
	assert.ErrorIs(t, err, domain.ErrNoTasteProfile)
}

func TestTaskRunnerRejectsUnknownKind(t *testing.T) {
	h := newHarness(t, 2)
	err := h.runner.Run(context.Background(), domain.Task{Kind: "bake", Key: "x"})
	assert.Error(t, err)
}
