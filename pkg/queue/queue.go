// Package queue serializes work per key: calls sharing a key run one at a time in the order
// they were submitted, calls with different keys run concurrently.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const logPrefix = "queue:queue"

var (
	// ErrTimeout is returned when a call exceeds the serializer timeout. The key is released.
	ErrTimeout = errors.New("timed out")
	// ErrClosed is returned for work submitted to, or cancelled by, a closed serializer.
	ErrClosed = errors.New("queue closed")
)

// Func is a unit of work. It should honour ctx.
type Func func(ctx context.Context) (any, error)

// Outcome is the result of a submitted Func.
type Outcome struct {
	Value any
	Err   error
}

// Serializer runs Funcs with per-key mutual exclusion and FIFO order.
type Serializer struct {
	timeout time.Duration

	mu     sync.Mutex
	tails  map[string]chan struct{}
	closed bool
	wg     sync.WaitGroup

	base   context.Context
	cancel context.CancelFunc
}

// New creates a Serializer. A timeout of zero disables the per-call bound.
func New(timeout time.Duration) *Serializer {
	base, cancel := context.WithCancel(context.Background())
	return &Serializer{
		timeout: timeout,
		tails:   make(map[string]chan struct{}),
		base:    base,
		cancel:  cancel,
	}
}

// Submit enqueues fn under key and returns a channel receiving exactly one Outcome. The position
// in the queue is taken before Submit returns, so callers that submit sequentially get their
// calls run in that order.
func (s *Serializer) Submit(ctx context.Context, key string, fn Func) <-chan Outcome {
	out := make(chan Outcome, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		out <- Outcome{Err: ErrClosed}
		return out
	}
	prev := s.tails[key]
	done := make(chan struct{})
	s.tails[key] = done
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, key, prev, done, fn, out)
	return out
}

// Do submits fn and waits for its outcome.
func (s *Serializer) Do(ctx context.Context, key string, fn Func) (any, error) {
	o := <-s.Submit(ctx, key, fn)
	return o.Value, o.Err
}

// Pending returns the number of keys with queued or running work.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

func (s *Serializer) release(key string, done chan struct{}) {
	close(done)
	s.mu.Lock()
	if s.tails[key] == done {
		delete(s.tails, key)
	}
	s.mu.Unlock()
}

func (s *Serializer) run(ctx context.Context, key string, prev, done chan struct{}, fn Func, out chan<- Outcome) {
	defer s.wg.Done()

	if prev != nil {
		select {
		case <-prev:
			if s.base.Err() != nil {
				s.release(key, done)
				out <- Outcome{Err: ErrClosed}
				return
			}
		case <-ctx.Done():
			out <- Outcome{Err: s.classify(ctx.Err())}
			go func() { <-prev; s.release(key, done) }()
			return
		case <-s.base.Done():
			out <- Outcome{Err: ErrClosed}
			go func() { <-prev; s.release(key, done) }()
			return
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()
	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.timeout)
		defer cancelTimeout()
	}

	res := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(fmt.Sprintf("%s - recovered panic for %s: %v", logPrefix, key, r))
				res <- Outcome{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(runCtx)
		res <- Outcome{Value: v, Err: err}
	}()

	select {
	case o := <-res:
		s.release(key, done)
		if o.Err != nil && runCtx.Err() != nil &&
			(errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded)) {
			o.Err = s.classify(runCtx.Err())
		}
		out <- o
	case <-runCtx.Done():
		s.release(key, done)
		err := s.classify(runCtx.Err())
		slog.Warn(fmt.Sprintf("%s - abandoned call for %s: %v", logPrefix, key, err))
		out <- Outcome{Err: err}
	}
}

func (s *Serializer) classify(err error) error {
	switch {
	case s.base.Err() != nil:
		return ErrClosed
	case errors.Is(err, context.DeadlineExceeded):
		if s.timeout > 0 {
			return fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
		}
		return ErrTimeout
	default:
		return err
	}
}

// Close rejects new work and waits for outstanding work until ctx ends, then cancels whatever
// is still queued or running and waits for it to unwind.
func (s *Serializer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.cancel()
		return nil
	case <-ctx.Done():
		slog.Warn(fmt.Sprintf("%s - drain interrupted, cancelling outstanding work", logPrefix))
		s.cancel()
		<-drained
		return ctx.Err()
	}
}
