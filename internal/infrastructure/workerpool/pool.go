package workerpool

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	defaultSize      = 4
	defaultQueueSize = 100
)

var (
	ErrSaturated = errors.New("ingestion queue full")
	ErrClosed    = errors.New("worker pool closed")
)

// Pool runs background ingestion tasks on a fixed number of goroutines.
// Tasks wait in a bounded queue while every worker is busy; Submit rejects
// only when that queue is full.
type Pool struct {
	pool   *ants.Pool
	queue  chan func()
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(size, queueSize int, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		size = defaultSize
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(
		size,
		ants.WithNonblocking(false),
		ants.WithLogger(slogAdapter{logger: logger}),
		ants.WithPanicHandler(func(r any) {
			logger.Error("worker_task_panic", "panic", r, "stack", string(debug.Stack()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p := &Pool{
		pool:   pool,
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.dispatch()
	return p, nil
}

// dispatch hands queued tasks to ants, blocking while all workers are busy.
func (p *Pool) dispatch() {
	defer close(p.done)
	for task := range p.queue {
		if err := p.pool.Submit(task); err != nil {
			p.logger.Error("worker_task_dropped", "error", err)
		}
	}
}

func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return fmt.Errorf("%w: %d tasks waiting, %d of %d workers busy",
			ErrSaturated, len(p.queue), p.pool.Running(), p.pool.Cap())
	}
}

func (p *Pool) Running() int { return p.pool.Running() }

func (p *Pool) Queued() int { return len(p.queue) }

func (p *Pool) Cap() int { return p.pool.Cap() }

func (p *Pool) QueueCap() int { return cap(p.queue) }

// Close stops accepting tasks, hands what is already queued to the workers
// and waits up to timeout for them to finish.
func (p *Pool) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Warn("worker_pool_drain_timeout", "queued", len(p.queue))
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	if err := p.pool.ReleaseTimeout(remaining); err != nil {
		p.logger.Warn("worker_pool_release_timeout", "running", p.pool.Running(), "error", err)
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...any) {
	a.logger.Warn("worker_pool", "message", fmt.Sprintf(format, args...))
}
