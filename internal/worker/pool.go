package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of blocking jobs (codec work, ffmpeg, backend calls)
// running at once across all connections.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	logger *zap.Logger
}

// PanicError is returned by Do when the job panicked
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker job panicked: %v", e.Value)
}

// NewPool creates a pool with size slots. A size below one is treated as one.
func NewPool(size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logger,
	}
}

// Size reports how many jobs may run at once
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn on its own goroutine once a slot is free and waits for it to
// return. If ctx ends first Do returns ctx.Err(); fn keeps its slot until it
// observes the same ctx and returns.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				p.logger.Error("Recovered panic in worker job",
					zap.Any("panic", r),
					zap.ByteString("stack", stack))
				done <- &PanicError{Value: r, Stack: stack}
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
