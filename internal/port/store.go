package port

import (
	"time"

	"palate/internal/domain"
)

// DishStore persists dish records.
type DishStore interface {
	PutDish(dish domain.Dish) error

	// GetDish returns domain.ErrNotFound for unknown IDs.
	GetDish(id string) (domain.Dish, error)

	// GetDishes fetches a batch of dishes. Unknown IDs are absent from the result.
	GetDishes(ids []string) (map[string]domain.Dish, error)

	DeleteDish(id string) error

	ListDishes() ([]domain.Dish, error)

	// SetDishEmbedding replaces the embedding of an existing dish.
	SetDishEmbedding(id string, vector []float32, model string) error
}

// UserStore persists users and their profile embeddings.
type UserStore interface {
	PutUser(user domain.User) error

	GetUser(id string) (domain.User, error)

	// GetProfile returns ok=false when the user has no profile embedding.
	GetProfile(userID string) (domain.ProfileEmbedding, bool, error)

	// SaveProfile writes the profile wholesale. It returns domain.ErrStaleProfile
	// when the stored profile has a newer SourceRevision, and otherwise assigns
	// the next Version.
	SaveProfile(profile domain.ProfileEmbedding) (domain.ProfileEmbedding, error)
}

// HistoryStore persists rating events, one per (user, dish).
type HistoryStore interface {
	// UpsertRating records the rating and bumps the user's history revision in one step.
	UpsertRating(userID, dishID string, liked bool, at time.Time) (domain.RatingEvent, error)

	// GetUserHistory returns every rating of the user, most recent first,
	// together with the revision it was read at.
	GetUserHistory(userID string) (domain.History, error)

	// ListRaters returns the IDs of every user with at least one rating.
	ListRaters() ([]string, error)
}
