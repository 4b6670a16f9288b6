package parallel

import (
	"context"
	"sync"
)

// Executor runs tasks on goroutines with an optional concurrency limit and
// cancellation support.
type Executor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}
	mu     sync.Mutex
	errors []error
}

// NewExecutor creates a new executor. limit bounds the number of tasks
// running at once; limit <= 0 means unbounded.
func NewExecutor(ctx context.Context, limit int) *Executor {
	execCtx, cancel := context.WithCancel(ctx)
	pe := &Executor{
		ctx:    execCtx,
		cancel: cancel,
		errors: make([]error, 0),
	}
	if limit > 0 {
		pe.sem = make(chan struct{}, limit)
	}
	return pe
}

// Execute runs fn in a goroutine once a slot is free. Tasks submitted after
// cancellation are skipped.
func (pe *Executor) Execute(fn func(context.Context) error) {
	pe.wg.Add(1)
	go func() {
		defer pe.wg.Done()

		if pe.sem != nil {
			select {
			case pe.sem <- struct{}{}:
				defer func() { <-pe.sem }()
			case <-pe.ctx.Done():
				return
			}
		}

		select {
		case <-pe.ctx.Done():
			return
		default:
		}

		if err := fn(pe.ctx); err != nil {
			pe.mu.Lock()
			pe.errors = append(pe.errors, err)
			pe.mu.Unlock()
		}
	}()
}

// Wait waits for all goroutines to complete and releases the context.
func (pe *Executor) Wait() {
	pe.wg.Wait()
	pe.cancel()
}

// Errors returns any errors that occurred during execution
func (pe *Executor) Errors() []error {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return append([]error(nil), pe.errors...)
}
