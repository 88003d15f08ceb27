package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"palate/internal/adapter/cache"
	"palate/internal/adapter/embedding"
	"palate/internal/adapter/memstore"
	"palate/internal/domain"
)

// recordingScheduler keeps enqueued tasks for the test to run explicitly.
type recordingScheduler struct {
	mu    sync.Mutex
	tasks []domain.Task
	err   error
}

func (s *recordingScheduler) Enqueue(ctx context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *recordingScheduler) take() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.tasks
	s.tasks = nil
	return out
}

type harness struct {
	store     *memstore.MemoryStore
	index     *memstore.VectorIndex
	mock      *embedding.MockEmbedder
	scheduler *recordingScheduler
	cache     *cache.RecommendationCache

	embedder    *DishEmbedder
	profiles    *ProfileAggregator
	ratings     *RatingUseCase
	recommender *Recommender
	catalog     *Catalog
	users       *UserUseCase
	matcher     *TasteMatcher
	runner      *TaskRunner
}

func newHarness(t *testing.T, dim int) *harness {
	t.Helper()
	h := &harness{
		store:     memstore.NewMemoryStore(),
		mock:      embedding.NewMockEmbedder(dim),
		scheduler: &recordingScheduler{},
		cache:     cache.NewRecommendationCache(64, 0),
	}
	var err error
	h.index, err = memstore.NewVectorIndex(dim)
	require.NoError(t, err)

	h.recommender = NewRecommender(h.store, h.store, h.store, h.index, h.cache, RecommendConfig{DefaultLimit: 10, MaxLimit: 50, Overfetch: 10})
	h.embedder, err = NewDishEmbedder(h.store, h.index, h.mock, 10, h.recommender)
	require.NoError(t, err)
	h.profiles, err = NewProfileAggregator(h.store, h.store, h.store, dim, DefaultWeights())
	require.NoError(t, err)
	h.ratings = NewRatingUseCase(h.store, h.store, h.scheduler)
	h.catalog = NewCatalog(h.store, h.index, h.scheduler, h.recommender)
	h.users = NewUserUseCase(h.store)
	h.matcher = NewTasteMatcher(h.store, h.store)
	h.runner = NewTaskRunner(h.profiles, h.embedder)
	return h
}

// runTasks executes every scheduled task, returning the errors in order.
func (h *harness) runTasks(t *testing.T) []error {
	t.Helper()
	var errs []error
	for _, task := range h.scheduler.take() {
		errs = append(errs, h.runner.Run(context.Background(), task))
	}
	return errs
}

// addEmbeddedDish stores a dish with a fixed embedding and indexes it.
func (h *harness) addEmbeddedDish(t *testing.T, id string, vec []float32) {
	t.Helper()
	name := "dish " + id
	h.mock.Set(name, vec)
	_, err := h.catalog.AddDish(context.Background(), DishInput{ID: id, Name: name})
	require.NoError(t, err)
	for _, err := range h.runTasks(t) {
		require.NoError(t, err)
	}
}
