package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
	"go.uber.org/zap"
)

// Runner executes one publish job by id
type Runner interface {
	RunJob(ctx context.Context, jobID string) error
}

// Pool manages a fixed set of worker goroutines draining the job queue
type Pool struct {
	size    int
	queue   ports.JobQueue
	runner  Runner
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// dequeueBackoff is the pause after a queue read error that is not a shutdown
const dequeueBackoff = 500 * time.Millisecond

// NewPool creates a new worker pool
func NewPool(
	size int,
	queue ports.JobQueue,
	runner Runner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		queue:   queue,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < size; i++ {
		pool.workers[i] = &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   pool,
			status: WorkerStatusStopped,
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("worker pool already started")
	}
	p.started = true

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		w.setStatus(WorkerStatusIdle)
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Health returns the pool's current health status
func (p *Pool) Health() *HealthStatus {
	return p.health.GetStatus()
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	defer w.setStatus(WorkerStatusStopped)

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		jobID, err := w.pool.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrQueueClosed) {
				w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
				return
			}
			w.pool.logger.Error("failed to dequeue job",
				zap.String("worker_id", w.id),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}

		w.handleJob(ctx, jobID)
	}
}

// handleJob runs a single job; a panic is logged and the worker keeps serving
func (w *worker) handleJob(ctx context.Context, jobID string) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("worker recovered from panic",
				zap.String("worker_id", w.id),
				zap.String("job_id", jobID),
				zap.Any("panic", r))
		}
	}()

	w.pool.logger.Info("running publish job",
		zap.String("worker_id", w.id),
		zap.String("job_id", jobID))

	startTime := time.Now()
	err := w.pool.runner.RunJob(ctx, jobID)
	duration := time.Since(startTime)

	switch {
	case err == nil:
		w.pool.logger.Info("publish job completed",
			zap.String("worker_id", w.id),
			zap.String("job_id", jobID),
			zap.Duration("duration", duration))
	case errors.Is(err, domain.ErrJobNotQueued), errors.Is(err, domain.ErrJobNotFound):
		w.pool.logger.Warn("skipping publish job",
			zap.String("worker_id", w.id),
			zap.String("job_id", jobID),
			zap.Error(err))
	default:
		w.pool.logger.Warn("publish job failed",
			zap.String("worker_id", w.id),
			zap.String("job_id", jobID),
			zap.Duration("duration", duration),
			zap.Error(err))
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
