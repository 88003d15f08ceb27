package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"palate/internal/adapter/queue"
	"palate/internal/httpapi"
	"palate/internal/logging"
)

// SupervisorConfig tunes restart behaviour of the serve tree.
type SupervisorConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// eventHook logs supervisor events through zerolog.
func eventHook(log zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		ev := log.Warn()
		if e.Type() == suture.EventTypeResume {
			ev = log.Info()
		}
		ev.Fields(e.Map()).Msg(e.String())
	}
}

// Supervisor builds the serve tree: the task worker and the HTTP server.
func (a *App) Supervisor(cfg SupervisorConfig) *suture.Supervisor {
	log := logging.Component("supervisor")
	root := suture.New("palate", suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})

	root.Add(&WorkerService{queue: a.Queue, handle: a.Tasks.Run})

	api := httpapi.New(a.APIServices(), httpapi.Options{
		RateLimit:       a.Config.Server.RateLimit,
		TasteScale:      a.Config.Taste.InputScale,
		FilterThreshold: a.Config.Taste.FilterThreshold,
	})
	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
	root.Add(NewHTTPService(server, a.Config.Server.ShutdownTimeout))
	return root
}

// Serve restores embeddings and profiles if Open rebuilt the database, then
// runs the supervised worker and HTTP server until ctx is done. Tasks accepted
// before that are finished before the application closes.
func (a *App) Serve(ctx context.Context, cfg SupervisorConfig) error {
	if a.Rebuilt {
		if _, _, err := a.RestoreEmbeddings(ctx, nil, nil); err != nil {
			return errors.Join(err, a.Shutdown(a.Config.Worker.TaskTimeout))
		}
	}

	err := a.Supervisor(cfg).Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return errors.Join(err, a.Shutdown(a.Config.Worker.TaskTimeout))
}

// WorkerService runs the task queue consumer as a supervised service.
type WorkerService struct {
	queue  *queue.Queue
	handle queue.Handler
}

func (s *WorkerService) Serve(ctx context.Context) error {
	err := s.queue.Run(ctx, s.handle)
	if errors.Is(err, queue.ErrClosed) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s *WorkerService) String() string { return "task-worker" }

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts a blocking HTTP server to suture's context-driven Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }
