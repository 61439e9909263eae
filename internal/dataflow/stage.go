// Package dataflow provides bounded-parallelism processing stages that link
// into pipelines. A stage admits items from an upstream source through a
// predicate, transforms up to N of them at a time and propagates completion
// and faults to whatever is linked after it.
package dataflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrAlreadyLinked is returned when Link is called on a stage that is
// already linked.
var ErrAlreadyLinked = errors.New("stage already linked")

// State is the lifecycle state of a stage.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateCompleted
	StateFaulted
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFaulted
}

// Source produces items for a stage. Output is closed when the source is
// finished; Err is valid once Done is closed.
type Source[T any] interface {
	Output() <-chan T
	Done() <-chan struct{}
	Err() error
}

// Options configures a stage.
type Options[In any] struct {
	// Parallelism bounds concurrent transforms. Values below 1 mean 1.
	Parallelism int

	// ErrorHandler, when set, is called with every failed item. Returning
	// nil drops the item and keeps the stage running; returning an error
	// faults the stage with it.
	ErrorHandler func(item In, err error) error
}

// Stats counts items seen by a stage.
type Stats struct {
	Received int64
	Filtered int64
	Emitted  int64
	Dropped  int64
}

// Stage is a bounded-parallelism transform from In to Out.
type Stage[In, Out any] struct {
	name      string
	opts      Options[In]
	transform func(context.Context, In) (Out, error)
	predicate func(In) (bool, error)

	out    chan Out
	done   chan struct{}
	state  atomic.Int32
	linked atomic.Bool

	received, filtered, emitted, dropped atomic.Int64

	mu  sync.Mutex
	err error
}

// NewStage creates a stage that applies transform to every admitted item.
func NewStage[In, Out any](name string, opts Options[In], transform func(context.Context, In) (Out, error)) *Stage[In, Out] {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Stage[In, Out]{
		name:      name,
		opts:      opts,
		transform: transform,
		out:       make(chan Out, opts.Parallelism),
		done:      make(chan struct{}),
	}
}

// WithPredicate sets the admission predicate. Items for which it returns
// false are skipped; an error faults the stage. It must be called before
// Link.
func (s *Stage[In, Out]) WithPredicate(p func(In) (bool, error)) *Stage[In, Out] {
	s.predicate = p
	return s
}

// Name returns the stage name.
func (s *Stage[In, Out]) Name() string { return s.name }

// Parallelism returns the concurrency bound.
func (s *Stage[In, Out]) Parallelism() int { return s.opts.Parallelism }

// Output returns the channel of transformed items. It is closed when the
// stage completes or faults.
func (s *Stage[In, Out]) Output() <-chan Out { return s.out }

// Done is closed once the stage has reached a terminal state.
func (s *Stage[In, Out]) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Stage[In, Out]) State() State { return State(s.state.Load()) }

// Err returns the fault of the stage, or nil.
func (s *Stage[In, Out]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the stage is terminal and returns its fault.
func (s *Stage[In, Out]) Wait() error {
	<-s.done
	return s.Err()
}

// Stats returns a snapshot of the item counters.
func (s *Stage[In, Out]) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Filtered: s.filtered.Load(),
		Emitted:  s.emitted.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// Link starts consuming upstream. The stage completes when upstream
// completes and in-flight transforms drain; it faults when upstream faults,
// a transform or the predicate fails, or ctx is cancelled.
func (s *Stage[In, Out]) Link(ctx context.Context, upstream Source[In]) error {
	if !s.linked.CompareAndSwap(false, true) {
		return fmt.Errorf("stage %s: %w", s.name, ErrAlreadyLinked)
	}
	s.state.Store(int32(StateRunning))
	go s.run(ctx, upstream)
	return nil
}

func (s *Stage[In, Out]) run(ctx context.Context, upstream Source[In]) {
	defer close(s.done)
	defer close(s.out)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.opts.Parallelism)

	in := upstream.Output()
	upstreamDone := false
loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case item, ok := <-in:
			if !ok {
				upstreamDone = true
				break loop
			}
			s.received.Add(1)
			admit, err := s.admit(item)
			if err != nil {
				cancel(fmt.Errorf("stage %s: predicate: %w", s.name, err))
				break loop
			}
			if !admit {
				s.filtered.Add(1)
				continue
			}
			g.Go(func() error { return s.process(gctx, item) })
		}
	}

	if upstreamDone {
		s.state.Store(int32(StateDraining))
	} else {
		// keep upstream from blocking on a stage that stopped reading
		go func() {
			for range in {
			}
		}()
	}

	err := g.Wait()
	if err == nil {
		err = context.Cause(runCtx)
	}
	if err == nil && upstreamDone {
		<-upstream.Done()
		if upErr := upstream.Err(); upErr != nil {
			err = fmt.Errorf("stage %s: upstream: %w", s.name, upErr)
		}
	}
	s.finish(err)
}

func (s *Stage[In, Out]) admit(item In) (bool, error) {
	if s.predicate == nil {
		return true, nil
	}
	return s.predicate(item)
}

func (s *Stage[In, Out]) process(ctx context.Context, item In) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	result, err := s.transform(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if s.opts.ErrorHandler != nil {
			herr := s.opts.ErrorHandler(item, err)
			if herr == nil {
				s.dropped.Add(1)
				return nil
			}
			err = herr
		}
		return fmt.Errorf("stage %s: %w", s.name, err)
	}
	select {
	case s.out <- result:
		s.emitted.Add(1)
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (s *Stage[In, Out]) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	if err != nil {
		s.state.Store(int32(StateFaulted))
		return
	}
	s.state.Store(int32(StateCompleted))
}
