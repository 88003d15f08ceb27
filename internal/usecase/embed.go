package usecase

import (
	"context"
	"errors"
	"fmt"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/metrics"
	"palate/internal/port"
)

// Purger drops cached results derived from the catalogue.
type Purger interface {
	Purge()
}

// ProgressFunc reports batch progress: done of total items.
type ProgressFunc func(done, total int)

// DishEmbedder generates dish embeddings and keeps the vector index in step.
type DishEmbedder struct {
	dishes    port.DishStore
	index     port.VectorIndex
	embedder  port.Embedder
	batchSize int
	purger    Purger
}

// NewDishEmbedder fails with ErrDimensionMismatch unless the embedder and
// the index agree on the vector length.
func NewDishEmbedder(dishes port.DishStore, index port.VectorIndex, embedder port.Embedder, batchSize int, purger Purger) (*DishEmbedder, error) {
	if embedder.Dimension() != index.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d, index holds %d",
			domain.ErrDimensionMismatch, embedder.Dimension(), index.Dimension())
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DishEmbedder{
		dishes:    dishes,
		index:     index,
		embedder:  embedder,
		batchSize: batchSize,
		purger:    purger,
	}, nil
}

// EmbedDish embeds one dish from its name and description, stores the vector
// on the dish and upserts it into the index. On failure the dish keeps
// whatever embedding it had.
func (u *DishEmbedder) EmbedDish(ctx context.Context, dishID string) error {
	dish, err := u.dishes.GetDish(dishID)
	if err != nil {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}

	vectors, err := u.embedder.Embed(ctx, []string{dish.EmbeddingText()})
	if err != nil {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("embed dish %s: %w", dishID, err)
	}
	if len(vectors) != 1 {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("embed dish %s: provider returned %d vectors", dishID, len(vectors))
	}

	stored, err := u.store(ctx, dish, vectors[0])
	if err != nil {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	if stored {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeOK).Inc()
		u.purge()
	} else {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeSkipped).Inc()
	}
	return nil
}

// EmbedDishes embeds the given dishes in batches. A failed batch is logged and
// skipped; the count of dishes embedded is returned.
func (u *DishEmbedder) EmbedDishes(ctx context.Context, ids []string, progress ProgressFunc) (int, error) {
	embedded := 0
	for start := 0; start < len(ids); start += u.batchSize {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}
		end := min(start+u.batchSize, len(ids))

		n, err := u.embedBatch(ctx, ids[start:end])
		embedded += n
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Int("batch_start", start).Int("batch_size", end-start).
				Msg("embedding batch failed")
		}
		if progress != nil {
			progress(end, len(ids))
		}
	}
	if embedded > 0 {
		u.purge()
	}
	return embedded, nil
}

// EmbedMissing embeds every dish that has no embedding.
func (u *DishEmbedder) EmbedMissing(ctx context.Context, progress ProgressFunc) (int, error) {
	dishes, err := u.dishes.ListDishes()
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, d := range dishes {
		if !d.HasEmbedding() {
			ids = append(ids, d.ID)
		}
	}
	return u.EmbedDishes(ctx, ids, progress)
}

func (u *DishEmbedder) embedBatch(ctx context.Context, ids []string) (int, error) {
	found, err := u.dishes.GetDishes(ids)
	if err != nil {
		return 0, err
	}

	dishes := make([]domain.Dish, 0, len(found))
	texts := make([]string, 0, len(found))
	for _, id := range ids {
		if d, ok := found[id]; ok {
			dishes = append(dishes, d)
			texts = append(texts, d.EmbeddingText())
		}
	}
	if len(dishes) == 0 {
		return 0, nil
	}

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Add(float64(len(dishes)))
		return 0, err
	}
	if len(vectors) != len(dishes) {
		metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Add(float64(len(dishes)))
		return 0, fmt.Errorf("provider returned %d vectors for %d dishes", len(vectors), len(dishes))
	}

	embedded := 0
	var errs []error
	for i, dish := range dishes {
		stored, err := u.store(ctx, dish, vectors[i])
		switch {
		case err != nil:
			metrics.Embeddings.WithLabelValues(metrics.OutcomeError).Inc()
			errs = append(errs, err)
		case stored:
			metrics.Embeddings.WithLabelValues(metrics.OutcomeOK).Inc()
			embedded++
		default:
			metrics.Embeddings.WithLabelValues(metrics.OutcomeSkipped).Inc()
		}
	}
	return embedded, errors.Join(errs...)
}

// store persists vec for dish. It reports false without error when the dish
// was deleted or its text changed while the embedding was being generated;
// a newer embed task covers the new text.
func (u *DishEmbedder) store(ctx context.Context, dish domain.Dish, vec []float32) (bool, error) {
	if err := domain.CheckDimension(vec, u.index.Dimension()); err != nil {
		return false, fmt.Errorf("embed dish %s: %w", dish.ID, err)
	}

	current, err := u.dishes.GetDish(dish.ID)
	if errors.Is(err, domain.ErrNotFound) {
		logging.Ctx(ctx).Debug().Str("dish", dish.ID).Msg("dish deleted before embedding was stored")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.EmbeddingText() != dish.EmbeddingText() {
		logging.Ctx(ctx).Debug().Str("dish", dish.ID).Msg("dish text changed during embedding, result dropped")
		return false, nil
	}

	if err := u.dishes.SetDishEmbedding(dish.ID, vec, u.embedder.ModelName()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("store embedding for dish %s: %w", dish.ID, err)
	}

	item := port.VectorItem{
		ID:     dish.ID,
		Vector: vec,
		Metadata: map[string]string{
			"name":          dish.Name,
			"restaurant_id": dish.RestaurantID,
		},
	}
	if err := u.index.Upsert([]port.VectorItem{item}); err != nil {
		return false, fmt.Errorf("index dish %s: %w", dish.ID, err)
	}

	logging.Ctx(ctx).Debug().Str("dish", dish.ID).Str("model", u.embedder.ModelName()).Msg("dish embedded")
	return true, nil
}

func (u *DishEmbedder) purge() {
	if u.purger != nil {
		u.purger.Purge()
	}
}
