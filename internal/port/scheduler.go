package port

import (
	"context"

	"palate/internal/domain"
)

// Scheduler hands deferred work to a background worker.
// Enqueue returns once the task is accepted; execution is asynchronous.
type Scheduler interface {
	Enqueue(ctx context.Context, task domain.Task) error
}
