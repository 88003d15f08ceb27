// Package app wires configuration, adapters and use cases into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"palate/config"
	"palate/internal/adapter/cache"
	"palate/internal/adapter/embedding"
	"palate/internal/adapter/fs"
	"palate/internal/adapter/menu"
	"palate/internal/adapter/queue"
	"palate/internal/adapter/store"
	"palate/internal/httpapi"
	"palate/internal/logging"
	"palate/internal/port"
	"palate/internal/usecase"
)

// App holds every long-lived component. Build it with Open and release it with Close.
type App struct {
	Config *config.Config

	Store    *store.BoltStore
	Index    *store.BoltVectorStore
	Embedder port.Embedder
	Queue    *queue.Queue
	Cache    *cache.RecommendationCache
	Menus    *menu.Loader

	Catalog     *usecase.Catalog
	Ratings     *usecase.RatingUseCase
	Recommender *usecase.Recommender
	Users       *usecase.UserUseCase
	Matcher     *usecase.TasteMatcher
	Profiles    *usecase.ProfileAggregator
	Dishes      *usecase.DishEmbedder
	Tasks       *usecase.TaskRunner

	// Rebuilt is set when Open discarded embeddings because the embedding
	// configuration or schema changed; dishes need embedding again.
	Rebuilt bool

	log        zerolog.Logger
	stopWorker context.CancelFunc
	workerDone chan struct{}
	closeOnce  sync.Once
}

// Open opens the database under dir and builds the application.
func Open(cfg *config.Config, dir string) (*App, error) {
	a := &App{Config: cfg, log: logging.Component("app")}

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, err
	}
	dbPath := cfg.DBPath(dir)
	s, err := store.NewBoltStore(dbPath, cfg.Store.OpenTimeout)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}
	a.Store = s

	if err := a.migrate(); err != nil {
		s.Close()
		return nil, err
	}

	a.Index, err = store.NewBoltVectorStore(s.DB(), cfg.Embedding.Dimension)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	inner, err := newEmbedder(cfg.Embedding)
	if err != nil {
		s.Close()
		return nil, err
	}
	a.Embedder = embedding.NewResilientEmbedder(inner, embedding.ResilientConfig{
		Timeout:         cfg.Embedding.Timeout,
		MaxRetries:      cfg.Embedding.MaxRetries,
		BreakerFailures: cfg.Embedding.BreakerFailures,
		BreakerCooldown: cfg.Embedding.BreakerCooldown,
	})

	a.Queue, err = queue.Open(queue.Config{
		Concurrency: cfg.Worker.Concurrency,
		TaskTimeout: cfg.Worker.TaskTimeout,
		Buffer:      cfg.Worker.QueueBuffer,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	if err := a.buildUseCases(); err != nil {
		a.Queue.Close()
		s.Close()
		return nil, err
	}

	a.log.Debug().Str("db", dbPath).Str("embedder", a.Embedder.ModelName()).
		Int("dimension", cfg.Embedding.Dimension).Msg("application opened")
	return a, nil
}

// migrate upgrades the schema, discarding embedding-derived data first when
// the stored vectors can no longer be trusted.
func (a *App) migrate() error {
	result, err := a.Store.CheckMigration(a.Config)
	if err != nil {
		return err
	}
	if result.NeedsRebuild {
		a.log.Warn().Str("reason", result.Reason).Msg("discarding embeddings and profiles")
		if err := a.Store.Clear(); err != nil {
			return fmt.Errorf("clear embeddings: %w", err)
		}
		a.Rebuilt = true
	}
	if result.NeedsMigration || result.NeedsRebuild {
		if err := a.Store.Migrate(a.Config); err != nil {
			return err
		}
		a.log.Debug().Int("from", result.OldVersion).Int("to", result.NewVersion).Msg("schema migrated")
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimension), nil
	case "openai":
		return embedding.NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Dimension, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func (a *App) buildUseCases() error {
	cfg := a.Config
	a.Cache = cache.NewRecommendationCache(cfg.Recommend.CacheSize, cfg.Recommend.CacheTTL)
	a.Recommender = usecase.NewRecommender(a.Store, a.Store, a.Store, a.Index, a.Cache, usecase.RecommendConfig{
		DefaultLimit: cfg.Recommend.DefaultLimit,
		MaxLimit:     cfg.Recommend.MaxLimit,
		Overfetch:    cfg.Recommend.Overfetch,
	})

	var err error
	a.Dishes, err = usecase.NewDishEmbedder(a.Store, a.Index, a.Embedder, cfg.Embedding.BatchSize, a.Recommender)
	if err != nil {
		return err
	}
	a.Profiles, err = usecase.NewProfileAggregator(a.Store, a.Store, a.Store, cfg.Embedding.Dimension, usecase.Weights{
		Like:    cfg.Profile.LikeWeight,
		Dislike: cfg.Profile.DislikeWeight,
	})
	if err != nil {
		return err
	}

	a.Catalog = usecase.NewCatalog(a.Store, a.Index, a.Queue, a.Recommender)
	a.Ratings = usecase.NewRatingUseCase(a.Store, a.Store, a.Queue)
	a.Users = usecase.NewUserUseCase(a.Store)
	a.Matcher = usecase.NewTasteMatcher(a.Store, a.Store)
	a.Tasks = usecase.NewTaskRunner(a.Profiles, a.Dishes)
	a.Menus = menu.NewLoader(fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes))
	return nil
}

// APIServices exposes the use cases served over HTTP.
func (a *App) APIServices() httpapi.Services {
	return httpapi.Services{
		Catalog:     a.Catalog,
		Ratings:     a.Ratings,
		Recommender: a.Recommender,
		Users:       a.Users,
		Matcher:     a.Matcher,
	}
}

// Start runs the task worker in the background until Close. One-shot
// commands use it; serve mode supervises the worker instead and only
// starts this one to drain on Shutdown.
func (a *App) Start() {
	if a.stopWorker != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWorker = cancel
	a.workerDone = make(chan struct{})
	go func() {
		defer close(a.workerDone)
		err := a.Queue.Run(ctx, a.Tasks.Run)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
			a.log.Error().Err(err).Msg("worker stopped")
		}
	}()
}

// Drain waits for scheduled tasks to finish.
func (a *App) Drain(ctx context.Context) error {
	return a.Queue.Drain(ctx)
}

// RestoreEmbeddings embeds every dish that lacks an embedding, then recomputes
// the profile of every rater. After a rebuild both are gone, and a rater's
// profile only comes back once the dishes they rated are embedded again.
func (a *App) RestoreEmbeddings(ctx context.Context, embedProgress, profileProgress usecase.ProgressFunc) (embedded, profiles int, err error) {
	embedded, err = a.Dishes.EmbedMissing(ctx, embedProgress)
	if err != nil {
		return embedded, 0, fmt.Errorf("re-embed dishes: %w", err)
	}
	profiles, err = a.Profiles.RecomputeAll(ctx, profileProgress)
	if err != nil {
		return embedded, profiles, fmt.Errorf("recompute profiles: %w", err)
	}
	a.log.Info().Int("dishes", embedded).Int("profiles", profiles).Msg("embeddings restored")
	return embedded, profiles, nil
}

// Shutdown runs every accepted task to completion, waiting at most timeout,
// then closes the application. Tasks still buffered in the queue are picked
// up by a worker started here if none is running.
func (a *App) Shutdown(timeout time.Duration) error {
	a.Start()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	drainErr := a.Drain(ctx)
	if drainErr != nil {
		a.log.Warn().Err(drainErr).Int("pending", a.Queue.Pending()).Msg("closing with unfinished tasks")
	}
	return errors.Join(drainErr, a.Close())
}

// Close stops the worker and releases the queue and database.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.stopWorker != nil {
			a.stopWorker()
			<-a.workerDone
		}
		err = errors.Join(a.Queue.Close(), a.Store.Close())
	})
	return err
}
