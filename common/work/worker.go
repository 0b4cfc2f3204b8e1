package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidChannelSize = errors.New("invalid channel size")
	ErrPoolStopped        = errors.New("worker pool has been stopped")
	ErrTaskTimeout        = errors.New("task execution timeout")
)

// TaskResult is the outcome of one task
type TaskResult[T any] struct {
	TaskID    string
	Result    T
	Error     error
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// IsSuccess returns true if the task completed successfully
func (tr *TaskResult[T]) IsSuccess() bool {
	return tr.Error == nil
}

// Executor is a unit of work run by the pool
type Executor[T any] interface {
	ExecutorID() string
	Execute(ctx context.Context) (T, error)
	OnError(error)
	// Timeout overrides the pool default when positive
	Timeout() time.Duration
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	NumWorkers      int
	TaskChannelSize int
	ResultChanSize  int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig sizes the pool for crawl units: few workers, long tasks
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:      1,
		TaskChannelSize: 64,
		ResultChanSize:  64,
		TaskTimeout:     30 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool runs tasks on a fixed number of goroutines and reports every result.
// A worker blocks on the result channel until the result is received or the
// pool stops; results are never dropped while the pool runs.
type Pool[T any] struct {
	config   PoolConfig
	tasks    chan Executor[T]
	results  chan TaskResult[T]
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	activeWorkers  atomic.Int64
	tasksQueued    atomic.Int64
	tasksCompleted atomic.Int64

	started bool
	stopped bool
	mu      sync.RWMutex
}

// NewWorkerPoolWithConfig creates a pool from config
func NewWorkerPoolWithConfig[T any](config PoolConfig) (*Pool[T], error) {
	if config.NumWorkers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if config.TaskChannelSize < 0 {
		return nil, ErrInvalidChannelSize
	}
	if config.ResultChanSize < 0 {
		config.ResultChanSize = config.NumWorkers * 2
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultPoolConfig().TaskTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultPoolConfig().ShutdownTimeout
	}

	return &Pool[T]{
		config:  config,
		tasks:   make(chan Executor[T], config.TaskChannelSize),
		results: make(chan TaskResult[T], config.ResultChanSize),
		quit:    make(chan struct{}),
	}, nil
}

// Start launches the workers; tasks run under ctx
func (p *Pool[T]) Start(ctx context.Context, workerPoolID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	if p.started {
		return
	}
	if p.stopped {
		logger.Error().Str("workerPoolID", workerPoolID).Msg("Cannot start a stopped pool")
		return
	}

	p.started = true
	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, workerPoolID, i)
	}
	logger.Info().
		Str("workerPoolID", workerPoolID).
		Int("numWorkers", p.config.NumWorkers).
		Msg("Worker pool started")
}

// Stop stops accepting tasks, waits for running tasks up to the shutdown
// timeout and closes the result channel once every worker exited
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.stopped = true
		close(p.tasks)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			close(p.results)
		case <-time.After(p.config.ShutdownTimeout):
			log.Warn().Dur("timeout", p.config.ShutdownTimeout).Msg("Shutdown timeout exceeded")
		}
	})
}

// AddTask queues task, blocking while the queue is full
func (p *Pool[T]) AddTask(ctx context.Context, task Executor[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		p.tasksQueued.Add(1)
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the results channel; it is closed by Stop
func (p *Pool[T]) Results() <-chan TaskResult[T] {
	return p.results
}

// PoolStats holds statistics about the pool
type PoolStats struct {
	ActiveWorkers  int64
	TasksQueued    int64
	TasksCompleted int64
	TasksInQueue   int64
}

func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		ActiveWorkers:  p.activeWorkers.Load(),
		TasksQueued:    p.tasksQueued.Load(),
		TasksCompleted: p.tasksCompleted.Load(),
		TasksInQueue:   int64(len(p.tasks)),
	}
}

func (p *Pool[T]) worker(ctx context.Context, poolID string, workerID int) {
	defer p.wg.Done()
	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	logger := zerolog.Ctx(ctx).With().Str("workerPoolID", poolID).Int("workerID", workerID).Logger()
	logger.Debug().Msg("Worker started")

	for {
		select {
		case <-p.quit:
			logger.Debug().Msg("Worker stopped due to pool shutdown")
			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug().Msg("Worker stopped due to context cancellation")
			return
		case <-p.quit:
			logger.Debug().Msg("Worker stopped due to pool shutdown")
			return
		case task, ok := <-p.tasks:
			if !ok {
				logger.Debug().Msg("Worker stopped, task channel closed")
				return
			}
			p.executeTask(ctx, logger, task)
		}
	}
}

func (p *Pool[T]) executeTask(ctx context.Context, logger zerolog.Logger, task Executor[T]) {
	taskID := task.ExecutorID()
	startTime := time.Now()

	timeout := p.config.TaskTimeout
	if taskTimeout := task.Timeout(); taskTimeout > 0 {
		timeout = taskTimeout
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug().Str("taskID", taskID).Dur("timeout", timeout).Msg("Executing task")

	result, err := task.Execute(taskCtx)
	endTime := time.Now()

	if err != nil && ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		err = errors.Join(ErrTaskTimeout, err)
	}
	if err != nil {
		task.OnError(err)
	}

	taskResult := TaskResult[T]{
		TaskID:    taskID,
		Result:    result,
		Error:     err,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
	}

	p.tasksCompleted.Add(1)

	select {
	case p.results <- taskResult:
	case <-p.quit:
		logger.Debug().Str("taskID", taskID).Msg("Pool shutting down, dropping result")
	}

	logger.Debug().
		Str("taskID", taskID).
		Dur("duration", taskResult.Duration).
		Bool("success", err == nil).
		Msg("Task completed")
}
