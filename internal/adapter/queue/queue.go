// Package queue runs deferred tasks on an in-process watermill pub/sub.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/metrics"
)

const (
	Topic = "palate.tasks"

	metadataCorrelationID = "correlation_id"
)

var ErrClosed = errors.New("task queue closed")

// Handler executes one task.
type Handler func(ctx context.Context, task domain.Task) error

type Config struct {
	Concurrency int
	TaskTimeout time.Duration
	Buffer      int64
}

// Queue is a port.Scheduler backed by a watermill GoChannel. Tasks are
// acknowledged on receipt and never redelivered; failures are logged.
type Queue struct {
	cfg      Config
	pubsub   *gochannel.GoChannel
	messages <-chan *message.Message
	cancel   context.CancelFunc
	sem      chan struct{}
	log      zerolog.Logger

	mu      sync.Mutex
	pending int
	idle    chan struct{}
	closed  bool
}

// Open creates the queue and subscribes to the task topic, so tasks
// enqueued before Run starts are buffered rather than dropped.
func Open(cfg Config) (*Queue, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	log := logging.Component("queue")
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Buffer,
	}, NewWatermillLogger(log))

	subCtx, cancel := context.WithCancel(context.Background())
	messages, err := pubsub.Subscribe(subCtx, Topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", Topic, err)
	}

	idle := make(chan struct{})
	close(idle)

	return &Queue{
		cfg:      cfg,
		pubsub:   pubsub,
		messages: messages,
		cancel:   cancel,
		sem:      make(chan struct{}, cfg.Concurrency),
		log:      log,
		idle:     idle,
	}, nil
}

// Enqueue publishes the task. It returns once the task is accepted.
func (q *Queue) Enqueue(ctx context.Context, task domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if id := logging.CorrelationID(ctx); id != "" {
		msg.Metadata.Set(metadataCorrelationID, id)
	}

	if err := q.begin(); err != nil {
		return err
	}
	if err := q.pubsub.Publish(Topic, msg); err != nil {
		q.done()
		return fmt.Errorf("publish task: %w", err)
	}

	metrics.TasksEnqueued.WithLabelValues(string(task.Kind)).Inc()
	return nil
}

// Run consumes tasks until ctx is cancelled or the queue is closed.
// Each task runs on its own goroutine, at most Concurrency at a time,
// under a context that outlives ctx but is bounded by TaskTimeout.
// A task is only received once a slot is free, so tasks not yet received
// when ctx ends stay buffered for the next Run.
func (q *Queue) Run(ctx context.Context, handle Handler) error {
	q.log.Debug().Int("concurrency", q.cfg.Concurrency).Msg("worker started")
	for {
		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			<-q.sem
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				<-q.sem
				return ErrClosed
			}
			msg.Ack()

			var task domain.Task
			if err := json.Unmarshal(msg.Payload, &task); err != nil {
				q.log.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable task")
				<-q.sem
				q.done()
				continue
			}

			taskCtx := logging.WithCorrelationID(context.WithoutCancel(ctx), msg.Metadata.Get(metadataCorrelationID))
			go q.execute(taskCtx, handle, task)
		}
	}
}

func (q *Queue) execute(ctx context.Context, handle Handler, task domain.Task) {
	defer func() { <-q.sem }()
	defer q.done()

	if q.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
	}

	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	start := time.Now()
	err := runSafely(ctx, handle, task)
	metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		logging.Ctx(ctx).Error().Err(err).Str("kind", string(task.Kind)).Str("key", task.Key).Msg("task failed")
	}
	metrics.TasksProcessed.WithLabelValues(string(task.Kind), outcome).Inc()
}

func runSafely(ctx context.Context, handle Handler, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return handle(ctx, task)
}

// Drain blocks until every accepted task has finished or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain tasks: %w", ctx.Err())
	}
}

// Pending returns the number of accepted tasks not yet finished.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close stops the subscription. Tasks not yet received are discarded.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	return q.pubsub.Close()
}

func (q *Queue) begin() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	return nil
}

func (q *Queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}
