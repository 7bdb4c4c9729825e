package runner

import (
	"context"
	"errors"
	"sync"

	"signal_trader/internal/executor"
	"signal_trader/internal/models"
	"signal_trader/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("runner: queue full")
	ErrStopped   = errors.New("runner: stopped")
)

type Executor interface {
	Execute(ctx context.Context, sig models.TradeSignal) (*executor.Report, error)
}

// ExecutionFailure is published for every signal whose execution returned an error.
type ExecutionFailure struct {
	ID     string
	Symbol string
	Err    error
}

type job struct {
	id  string
	sig models.TradeSignal
}

// Pool runs signals on a fixed set of workers behind a bounded queue.
// Submit never blocks the caller.
type Pool struct {
	exec     Executor
	workers  int
	queue    chan job
	failures chan ExecutionFailure

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(exec Executor, workers, queueSize int) *Pool {
	return &Pool{
		exec:     exec,
		workers:  workers,
		queue:    make(chan job, queueSize),
		failures: make(chan ExecutionFailure, 256),
	}
}

// Failures is the stream of execution errors. Nobody reading it is fine:
// failures are dropped once the buffer is full.
func (p *Pool) Failures() <-chan ExecutionFailure { return p.failures }

func (p *Pool) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	logger.Info("runner: %d workers started, queue %d", p.workers, cap(p.queue))
}

// Submit enqueues sig and returns its job id.
func (p *Pool) Submit(sig models.TradeSignal) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrStopped
	}

	id := uuid.NewString()
	select {
	case p.queue <- job{id: id, sig: sig}:
		return id, nil
	default:
		return "", ErrQueueFull
	}
}

// Stop refuses new jobs and waits for in-flight executions to return.
// Queued jobs that no worker picked up are abandoned.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.run(ctx, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("runner: job %s panicked: %v", j.id, r)
			p.publish(ExecutionFailure{ID: j.id, Symbol: j.sig.Symbol, Err: errors.New("execution panicked")})
		}
	}()

	if _, err := p.exec.Execute(ctx, j.sig); err != nil {
		logger.Warn("runner: job %s %s: %v", j.id, j.sig.Symbol, err)
		p.publish(ExecutionFailure{ID: j.id, Symbol: j.sig.Symbol, Err: err})
	}
}

func (p *Pool) publish(f ExecutionFailure) {
	select {
	case p.failures <- f:
	default:
		logger.Warn("runner: failure channel full, dropped %s", f.ID)
	}
}
