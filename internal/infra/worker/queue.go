package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"postop_followup/internal/infra/metrics"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Config tunes a Queue. Zero values fall back to defaults.
type Config struct {
	Workers     int
	Size        int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	TaskTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Size <= 0 {
		c.Size = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	return c
}

// Queue runs tasks on a fixed pool of workers and retries failures with
// exponential backoff.
type Queue struct {
	cfg    Config
	tasks  chan task
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func New(cfg Config, logger *logrus.Entry) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:    cfg,
		tasks:  make(chan task, cfg.Size),
		logger: logger,
	}
}

// Start launches the workers. Cancelling ctx aborts retries in progress.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	q.logger.WithField("workers", q.cfg.Workers).Info("Background queue started")
}

// Enqueue never blocks. It returns false when the queue is full or stopped.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		metrics.BackgroundTasks.WithLabelValues(name, "dropped").Inc()
		q.logger.WithField("task", name).Warn("Background queue full, task dropped")
		return false
	}
}

// Stop refuses new tasks and waits for queued ones to finish or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.logger.Info("Background queue drained")
		return nil
	case <-ctx.Done():
		if q.cancel != nil {
			q.cancel()
		}
		return ctx.Err()
	}
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(id, t)
	}
}

func (q *Queue) run(worker int, t task) {
	log := q.logger.WithFields(logrus.Fields{"task": t.name, "worker": worker})
	for attempt := 1; ; attempt++ {
		err := q.attempt(t)
		if err == nil {
			metrics.BackgroundTasks.WithLabelValues(t.name, "ok").Inc()
			return
		}
		if attempt >= q.cfg.MaxAttempts {
			metrics.BackgroundTasks.WithLabelValues(t.name, "failed").Inc()
			log.WithError(err).WithField("attempts", attempt).Error("Background task failed")
			return
		}

		wait := q.backoff(attempt)
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "retry_in": wait}).Warn("Background task failed, retrying")
		select {
		case <-time.After(wait):
		case <-q.ctx.Done():
			metrics.BackgroundTasks.WithLabelValues(t.name, "aborted").Inc()
			return
		}
	}
}

func (q *Queue) attempt(t task) (err error) {
	ctx := q.ctx
	if q.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task panicked")
			q.logger.WithField("task", t.name).WithField("panic", r).Error("Recovered from panic in background task")
		}
	}()
	return t.fn(ctx)
}

func (q *Queue) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return q.cfg.MaxBackoff
	}
	d := q.cfg.BaseBackoff << (attempt - 1)
	if d <= 0 || d > q.cfg.MaxBackoff {
		return q.cfg.MaxBackoff
	}
	return d
}
