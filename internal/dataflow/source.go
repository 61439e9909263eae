package dataflow

import (
	"context"
	"iter"
	"slices"
)

// source is a Source fed by a single producer goroutine.
type source[T any] struct {
	out  chan T
	done chan struct{}
	err  error
}

func (s *source[T]) Output() <-chan T      { return s.out }
func (s *source[T]) Done() <-chan struct{} { return s.done }

func (s *source[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// FromSeq returns a source yielding the items of seq. It faults with the
// context error if ctx is cancelled before seq is exhausted.
func FromSeq[T any](ctx context.Context, seq iter.Seq[T]) Source[T] {
	return FromSeq2(ctx, func(yield func(T, error) bool) {
		for v := range seq {
			if !yield(v, nil) {
				return
			}
		}
	})
}

// FromSeq2 returns a source yielding the items of seq. The first non-nil
// error yielded by seq faults the source.
func FromSeq2[T any](ctx context.Context, seq iter.Seq2[T, error]) Source[T] {
	s := &source[T]{out: make(chan T), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(s.out)
		for v, err := range seq {
			if err != nil {
				s.err = err
				return
			}
			select {
			case s.out <- v:
			case <-ctx.Done():
				s.err = context.Cause(ctx)
				return
			}
		}
	}()
	return s
}

// FromSlice returns a source yielding items in order.
func FromSlice[T any](ctx context.Context, items []T) Source[T] {
	return FromSeq(ctx, slices.Values(items))
}

// Drain consumes src, calling fn for every item, and returns the source's
// fault once it is done.
func Drain[T any](src Source[T], fn func(T)) error {
	for v := range src.Output() {
		if fn != nil {
			fn(v)
		}
	}
	<-src.Done()
	return src.Err()
}
