package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/metrics"
	"palate/internal/port"
)

// RatingUseCase records likes and dislikes and schedules profile recomputes.
type RatingUseCase struct {
	dishes    port.DishStore
	history   port.HistoryStore
	scheduler port.Scheduler
	now       func() time.Time
}

func NewRatingUseCase(dishes port.DishStore, history port.HistoryStore, scheduler port.Scheduler) *RatingUseCase {
	return &RatingUseCase{
		dishes:    dishes,
		history:   history,
		scheduler: scheduler,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RateDish records the rating, replacing any earlier rating of the same dish,
// and schedules a profile recompute. The result does not depend on the
// recompute; a scheduling failure is only logged.
func (u *RatingUseCase) RateDish(ctx context.Context, userID, dishID string, liked bool) (domain.RatingEvent, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return domain.RatingEvent{}, err
	}
	if err := domain.ValidateID("dish", dishID); err != nil {
		return domain.RatingEvent{}, err
	}
	if _, err := u.dishes.GetDish(dishID); err != nil {
		return domain.RatingEvent{}, err
	}

	event, err := u.history.UpsertRating(userID, dishID, liked, u.now())
	if err != nil {
		return domain.RatingEvent{}, fmt.Errorf("record rating: %w", err)
	}
	metrics.RatingsTotal.WithLabelValues(strconv.FormatBool(liked)).Inc()

	task := domain.Task{Kind: domain.TaskRecomputeProfile, Key: userID}
	if err := u.scheduler.Enqueue(ctx, task); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user", userID).Msg("failed to schedule profile recompute")
	}

	return event, nil
}

// History returns the user's ratings, most recent first.
func (u *RatingUseCase) History(ctx context.Context, userID string) ([]domain.RatingEvent, error) {
	if err := domain.ValidateID("user", userID); err != nil {
		return nil, err
	}
	h, err := u.history.GetUserHistory(userID)
	if err != nil {
		return nil, err
	}
	return h.Entries, nil
}
