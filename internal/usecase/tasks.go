package usecase

import (
	"context"
	"errors"
	"fmt"

	"palate/internal/domain"
	"palate/internal/logging"
)

// TaskRunner executes scheduled tasks.
type TaskRunner struct {
	profiles *ProfileAggregator
	embedder *DishEmbedder
}

func NewTaskRunner(profiles *ProfileAggregator, embedder *DishEmbedder) *TaskRunner {
	return &TaskRunner{profiles: profiles, embedder: embedder}
}

// Run dispatches on the task kind. A recompute that lost the race to a newer
// one is not a failure.
func (r *TaskRunner) Run(ctx context.Context, task domain.Task) error {
	switch task.Kind {
	case domain.TaskRecomputeProfile:
		_, _, err := r.profiles.Recompute(ctx, task.Key)
		if errors.Is(err, domain.ErrStaleProfile) {
			return nil
		}
		return err
	case domain.TaskEmbedDish:
		return r.embedder.EmbedDish(ctx, task.Key)
	default:
		logging.Ctx(ctx).Warn().Str("kind", string(task.Kind)).Msg("unknown task kind")
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}
