package usecase

import (
	"context"
	"fmt"

	"palate/internal/domain"
	"palate/internal/port"
)

// TasteMatcher scores how well a dish's taste suits a user's declared taste.
type TasteMatcher struct {
	users  port.UserStore
	dishes port.DishStore
}

func NewTasteMatcher(users port.UserStore, dishes port.DishStore) *TasteMatcher {
	return &TasteMatcher{users: users, dishes: dishes}
}

// Match returns ErrNoTasteProfile when either side has no taste vector.
func (u *TasteMatcher) Match(ctx context.Context, userID, dishID string) (domain.TasteMatch, error) {
	user, err := u.users.GetUser(userID)
	if err != nil {
		return domain.TasteMatch{}, err
	}
	dish, err := u.dishes.GetDish(dishID)
	if err != nil {
		return domain.TasteMatch{}, err
	}
	if user.Taste == nil {
		return domain.TasteMatch{}, fmt.Errorf("%w: user %s", domain.ErrNoTasteProfile, userID)
	}
	if dish.Taste == nil {
		return domain.TasteMatch{}, fmt.Errorf("%w: dish %s", domain.ErrNoTasteProfile, dishID)
	}

	sim := domain.Similarity(*user.Taste, *dish.Taste)
	return domain.TasteMatch{
		UserID:     userID,
		DishID:     dishID,
		Similarity: sim,
		Percent:    domain.Percent(sim),
	}, nil
}
