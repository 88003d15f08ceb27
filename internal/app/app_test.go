package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"palate/config"
	"palate/internal/adapter/queue"
	"palate/internal/domain"
	"palate/internal/usecase"
)

func testConfig(dim int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = dim
	cfg.Worker.Concurrency = 2
	return cfg
}

func drain(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Drain(ctx))
}

func TestOpenWiresWorkerAndUseCases(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(testConfig(8), dir)
	require.NoError(t, err)
	defer a.Close()
	a.Start()

	ctx := context.Background()
	for _, name := range []string{"Ramen", "Udon", "Soba"} {
		_, err := a.Catalog.AddDish(ctx, usecase.DishInput{ID: name, Name: name})
		require.NoError(t, err)
	}
	drain(t, a)

	dish, err := a.Catalog.GetDish(ctx, "Ramen")
	require.NoError(t, err)
	assert.Len(t, dish.Embedding, 8)
	n, err := a.Index.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = a.Ratings.RateDish(ctx, "u", "Ramen", true)
	require.NoError(t, err)
	drain(t, a)

	_, ok, err := a.Users.Profile(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := a.Recommender.Recommend(ctx, "u", 5)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.NotEqual(t, "Ramen", r.Dish.ID)
	}
}

// seedRatedDish leaves dir with one embedded dish "d" liked by user "u".
func seedRatedDish(t *testing.T, dir string, dim int) {
	t.Helper()
	a, err := Open(testConfig(dim), dir)
	require.NoError(t, err)
	a.Start()
	ctx := context.Background()
	_, err = a.Catalog.AddDish(ctx, usecase.DishInput{ID: "d", Name: "Dal"})
	require.NoError(t, err)
	drain(t, a)
	_, err = a.Ratings.RateDish(ctx, "u", "d", true)
	require.NoError(t, err)
	drain(t, a)
	assert.False(t, a.Rebuilt)
	require.NoError(t, a.Close())
}

func TestReopenWithNewDimensionDiscardsEmbeddings(t *testing.T) {
	dir := t.TempDir()
	seedRatedDish(t, dir, 8)

	b, err := Open(testConfig(4), dir)
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.Rebuilt)

	ctx := context.Background()
	dish, err := b.Catalog.GetDish(ctx, "d")
	require.NoError(t, err)
	assert.False(t, dish.HasEmbedding())
	_, ok, err := b.Users.Profile(ctx, "u")
	require.NoError(t, err)
	assert.False(t, ok)

	embedded, profiles, err := b.RestoreEmbeddings(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, embedded)
	assert.Equal(t, 1, profiles)

	dish, err = b.Catalog.GetDish(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, dish.Embedding, 4)
	profile, ok, err := b.Users.Profile(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, profile.Vector, 4)
}

func TestServeRestoresProfilesAfterRebuild(t *testing.T) {
	dir := t.TempDir()
	seedRatedDish(t, dir, 8)

	cfg := testConfig(4)
	cfg.Server.Addr = "127.0.0.1:0"
	a, err := Open(cfg, dir)
	require.NoError(t, err)
	defer a.Close()
	require.True(t, a.Rebuilt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, DefaultSupervisorConfig()) }()

	require.Eventually(t, func() bool {
		_, ok, err := a.Store.GetProfile("u")
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestShutdownFinishesAcceptedTasks(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// No worker runs, so the embedding task is only buffered.
	a, err := Open(testConfig(4), dir)
	require.NoError(t, err)
	_, err = a.Catalog.AddDish(ctx, usecase.DishInput{ID: "d", Name: "Dal"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Queue.Pending())
	require.NoError(t, a.Shutdown(5*time.Second))

	b, err := Open(testConfig(4), dir)
	require.NoError(t, err)
	defer b.Close()
	dish, err := b.Catalog.GetDish(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, dish.Embedding, 4)

	// A rating accepted just before serve stops still updates the profile.
	_, err = b.Ratings.RateDish(ctx, "u", "d", true)
	require.NoError(t, err)
	b.Config.Server.Addr = "127.0.0.1:0"
	stopped, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, b.Serve(stopped, DefaultSupervisorConfig()))
	assert.Zero(t, b.Queue.Pending())

	c, err := Open(testConfig(4), dir)
	require.NoError(t, err)
	defer c.Close()
	_, ok, err := c.Users.Profile(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(4)
	cfg.Embedding.Provider = "carrier-pigeon"
	_, err := Open(cfg, t.TempDir())
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := Open(testConfig(4), t.TempDir())
	require.NoError(t, err)
	a.Start()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err = a.Queue.Enqueue(context.Background(), domain.Task{Kind: domain.TaskEmbedDish, Key: "x"})
	assert.ErrorIs(t, err, queue.ErrClosed)
}

type fakeServer struct {
	stop     chan struct{}
	failWith error
}

func (s *fakeServer) ListenAndServe() error {
	if s.failWith != nil {
		return s.failWith
	}
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	close(s.stop)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := &fakeServer{stop: make(chan struct{})}
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestHTTPServiceReportsListenFailure(t *testing.T) {
	svc := NewHTTPService(&fakeServer{failWith: errors.New("address in use")}, time.Second)
	err := svc.Serve(context.Background())
	assert.ErrorContains(t, err, "address in use")
}

func TestWorkerServiceStopsForGoodWhenQueueCloses(t *testing.T) {
	q, err := queue.Open(queue.Config{Concurrency: 1})
	require.NoError(t, err)
	svc := &WorkerService{queue: q, handle: func(context.Context, domain.Task) error { return nil }}

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, suture.ErrDoNotRestart)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
