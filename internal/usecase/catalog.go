package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/port"
)

// DishInput is the caller-supplied part of a dish.
type DishInput struct {
	ID           string              `json:"id,omitempty"`
	RestaurantID string              `json:"restaurant_id,omitempty"`
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	Price        float64             `json:"price,omitempty"`
	Category     string              `json:"category,omitempty"`
	Taste        *domain.TasteVector `json:"taste,omitempty"`
}

// DishFilter narrows ListDishes. Axes keeps dishes whose taste is at or
// above Threshold on every named axis; dishes without a taste never match.
type DishFilter struct {
	RestaurantID string
	Category     string
	Axes         []string
	Threshold    float64
}

// ImportResult summarises a menu import.
type ImportResult struct {
	Dishes    []domain.Dish
	Scheduled int
}

// Catalog manages dishes and keeps embeddings and the vector index in step.
type Catalog struct {
	dishes    port.DishStore
	index     port.VectorIndex
	scheduler port.Scheduler
	purger    Purger
	now       func() time.Time
}

func NewCatalog(dishes port.DishStore, index port.VectorIndex, scheduler port.Scheduler, purger Purger) *Catalog {
	return &Catalog{
		dishes:    dishes,
		index:     index,
		scheduler: scheduler,
		purger:    purger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateDish(in DishInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: dish name is required", domain.ErrInvalidInput)
	}
	if in.ID != "" {
		if err := domain.ValidateID("dish", in.ID); err != nil {
			return err
		}
	}
	if in.Price < 0 || math.IsNaN(in.Price) {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if in.Taste != nil {
		if err := in.Taste.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AddDish stores a new dish and schedules its embedding.
func (u *Catalog) AddDish(ctx context.Context, in DishInput) (domain.Dish, error) {
	if err := validateDish(in); err != nil {
		return domain.Dish{}, err
	}
	now := u.now()
	dish := domain.Dish{
		ID:           in.ID,
		RestaurantID: in.RestaurantID,
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		Category:     in.Category,
		Taste:        in.Taste,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if dish.ID == "" {
		dish.ID = uuid.NewString()
	}
	if err := u.dishes.PutDish(dish); err != nil {
		return domain.Dish{}, fmt.Errorf("store dish: %w", err)
	}

	u.scheduleEmbedding(ctx, dish.ID)
	return dish, nil
}

// UpdateDish replaces the caller-supplied fields of a dish. When the name or
// description changes the old embedding is dropped and a new one scheduled.
func (u *Catalog) UpdateDish(ctx context.Context, id string, in DishInput) (domain.Dish, error) {
	if err := validateDish(in); err != nil {
		return domain.Dish{}, err
	}
	dish, err := u.dishes.GetDish(id)
	if err != nil {
		return domain.Dish{}, err
	}

	oldText := dish.EmbeddingText()
	dish.RestaurantID = in.RestaurantID
	dish.Name = strings.TrimSpace(in.Name)
	dish.Description = strings.TrimSpace(in.Description)
	dish.Price = in.Price
	dish.Category = in.Category
	dish.Taste = in.Taste
	dish.UpdatedAt = u.now()

	reembed := dish.EmbeddingText() != oldText
	if reembed {
		dish.Embedding = nil
		dish.EmbeddingModel = ""
	}
	if err := u.dishes.PutDish(dish); err != nil {
		return domain.Dish{}, fmt.Errorf("store dish: %w", err)
	}

	if reembed {
		if err := u.index.Delete([]string{id}); err != nil {
			return domain.Dish{}, fmt.Errorf("drop stale vector for %s: %w", id, err)
		}
		u.purge()
		u.scheduleEmbedding(ctx, id)
	}
	return dish, nil
}

// DeleteDish removes the dish and its vector. Ratings of it stay in history
// and are skipped wherever the dish is looked up.
func (u *Catalog) DeleteDish(ctx context.Context, id string) error {
	if err := u.dishes.DeleteDish(id); err != nil {
		return err
	}
	if err := u.index.Delete([]string{id}); err != nil {
		return fmt.Errorf("remove vector for %s: %w", id, err)
	}
	u.purge()
	logging.Ctx(ctx).Debug().Str("dish", id).Msg("dish deleted")
	return nil
}

func (u *Catalog) GetDish(ctx context.Context, id string) (domain.Dish, error) {
	return u.dishes.GetDish(id)
}

// ListDishes returns matching dishes ordered by name.
func (u *Catalog) ListDishes(ctx context.Context, f DishFilter) ([]domain.Dish, error) {
	all, err := u.dishes.ListDishes()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Dish, 0, len(all))
	for _, d := range all {
		if f.RestaurantID != "" && d.RestaurantID != f.RestaurantID {
			continue
		}
		if f.Category != "" && !strings.EqualFold(d.Category, f.Category) {
			continue
		}
		if len(f.Axes) > 0 {
			if d.Taste == nil {
				continue
			}
			ok, err := d.Taste.MatchesAll(f.Axes, f.Threshold)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ImportMenu stores every dish of the menu, then schedules one embedding task
// per dish. Invalid dishes abort the import before anything is written.
func (u *Catalog) ImportMenu(ctx context.Context, menu domain.Menu) (ImportResult, error) {
	inputs := make([]DishInput, len(menu.Dishes))
	for i, d := range menu.Dishes {
		restaurant := d.RestaurantID
		if restaurant == "" {
			restaurant = menu.RestaurantID
		}
		inputs[i] = DishInput{
			ID:           d.ID,
			RestaurantID: restaurant,
			Name:         d.Name,
			Description:  d.Description,
			Price:        d.Price,
			Category:     d.Category,
			Taste:        d.Taste,
		}
		if err := validateDish(inputs[i]); err != nil {
			return ImportResult{}, fmt.Errorf("dish %d of %s: %w", i, menu.RestaurantID, err)
		}
	}

	now := u.now()
	result := ImportResult{Dishes: make([]domain.Dish, 0, len(inputs))}
	for _, in := range inputs {
		dish := domain.Dish{
			ID:           in.ID,
			RestaurantID: in.RestaurantID,
			Name:         strings.TrimSpace(in.Name),
			Description:  strings.TrimSpace(in.Description),
			Price:        in.Price,
			Category:     in.Category,
			Taste:        in.Taste,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if dish.ID == "" {
			dish.ID = uuid.NewString()
		}
		if err := u.dishes.PutDish(dish); err != nil {
			return result, fmt.Errorf("store dish %s: %w", dish.Name, err)
		}
		result.Dishes = append(result.Dishes, dish)
	}

	for _, dish := range result.Dishes {
		if u.scheduleEmbedding(ctx, dish.ID) {
			result.Scheduled++
		}
	}

	logging.Ctx(ctx).Info().Str("restaurant", menu.RestaurantID).Int("dishes", len(result.Dishes)).
		Int("scheduled", result.Scheduled).Msg("menu imported")
	return result, nil
}

func (u *Catalog) scheduleEmbedding(ctx context.Context, dishID string) bool {
	err := u.scheduler.Enqueue(ctx, domain.Task{Kind: domain.TaskEmbedDish, Key: dishID})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("dish", dishID).Msg("failed to schedule dish embedding")
		return false
	}
	return true
}

func (u *Catalog) purge() {
	if u.purger != nil {
		u.purger.Purge()
	}
}

// IsNotFound reports whether err means a missing dish or user.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
