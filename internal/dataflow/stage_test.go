package dataflow

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func numbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func double(_ context.Context, v int) (int, error) { return v * 2, nil }

func collect[T any](t *testing.T, src Source[T]) ([]T, error) {
	t.Helper()
	var items []T
	err := Drain(src, func(v T) { items = append(items, v) })
	return items, err
}

func waitForState[In, Out any](t *testing.T, s *Stage[In, Out], want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("stage %s: state %s, want %s", s.Name(), s.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStageTransformsEveryItem(t *testing.T) {
	ctx := context.Background()
	s := NewStage("double", Options[int]{Parallelism: 4}, double)
	if err := s.Link(ctx, FromSlice(ctx, numbers(100))); err != nil {
		t.Fatalf("Link: %v", err)
	}

	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	sort.Ints(got)
	if len(got) != 100 || got[0] != 2 || got[99] != 200 {
		t.Errorf("unexpected output: len=%d first=%d last=%d", len(got), got[0], got[len(got)-1])
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s, want completed", s.State())
	}
	if st := s.Stats(); st.Received != 100 || st.Emitted != 100 || st.Filtered != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStageBoundsParallelism(t *testing.T) {
	ctx := context.Background()
	var inFlight, peak atomic.Int64
	s := NewStage("slow", Options[int]{Parallelism: 3}, func(_ context.Context, v int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return v, nil
	})
	if err := s.Link(ctx, FromSlice(ctx, numbers(30))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if _, err := collect(t, s); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if p := peak.Load(); p > 3 || p < 1 {
		t.Errorf("peak concurrency = %d, want between 1 and 3", p)
	}
}

func TestStageZeroParallelismMeansOne(t *testing.T) {
	s := NewStage("one", Options[int]{}, double)
	if s.Parallelism() != 1 {
		t.Errorf("Parallelism = %d, want 1", s.Parallelism())
	}
}

func TestStagePredicateFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStage("evens", Options[int]{Parallelism: 2}, double).
		WithPredicate(func(v int) (bool, error) { return v%2 == 0, nil })
	if err := s.Link(ctx, FromSlice(ctx, numbers(10))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 admitted items, got %d", len(got))
	}
	if st := s.Stats(); st.Filtered != 5 {
		t.Errorf("Filtered = %d, want 5", st.Filtered)
	}
}

func TestStageFaultPropagatesDownstream(t *testing.T) {
	ctx := context.Background()
	first := NewStage("first", Options[int]{Parallelism: 4}, func(_ context.Context, v int) (int, error) {
		if v == 7 {
			return 0, errBoom
		}
		return v, nil
	})
	second := NewStage("second", Options[int]{Parallelism: 4}, double)
	if err := first.Link(ctx, FromSlice(ctx, numbers(50))); err != nil {
		t.Fatalf("Link first: %v", err)
	}
	if err := second.Link(ctx, first); err != nil {
		t.Fatalf("Link second: %v", err)
	}

	_, err := collect(t, second)
	if !errors.Is(err, errBoom) {
		t.Fatalf("downstream error = %v, want errBoom", err)
	}
	if first.State() != StateFaulted || second.State() != StateFaulted {
		t.Errorf("states = %s/%s, want faulted/faulted", first.State(), second.State())
	}
	if !errors.Is(first.Wait(), errBoom) {
		t.Errorf("first stage error = %v, want errBoom", first.Err())
	}
}

func TestStagePredicateErrorFaults(t *testing.T) {
	ctx := context.Background()
	s := NewStage("lookup", Options[int]{Parallelism: 2}, double).
		WithPredicate(func(v int) (bool, error) {
			if v == 3 {
				return false, errBoom
			}
			return true, nil
		})
	if err := s.Link(ctx, FromSlice(ctx, numbers(10))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if _, err := collect(t, s); !errors.Is(err, errBoom) {
		t.Fatalf("error = %v, want errBoom", err)
	}
	if s.State() != StateFaulted {
		t.Errorf("state = %s, want faulted", s.State())
	}
}

func TestStageErrorHandlerIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	var failed []int
	s := NewStage("isolated", Options[int]{
		Parallelism: 1,
		ErrorHandler: func(v int, err error) error {
			failed = append(failed, v)
			return nil
		},
	}, func(_ context.Context, v int) (int, error) {
		if v%10 == 0 {
			return 0, errBoom
		}
		return v, nil
	})
	if err := s.Link(ctx, FromSlice(ctx, numbers(30))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if len(got) != 27 || len(failed) != 3 {
		t.Errorf("got %d items and %d failures, want 27 and 3", len(got), len(failed))
	}
	if st := s.Stats(); st.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", st.Dropped)
	}
}

func TestStageErrorHandlerCanEscalate(t *testing.T) {
	ctx := context.Background()
	escalated := errors.New("escalated")
	s := NewStage("escalate", Options[int]{
		ErrorHandler: func(int, error) error { return escalated },
	}, func(context.Context, int) (int, error) { return 0, errBoom })
	if err := s.Link(ctx, FromSlice(ctx, numbers(3))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if _, err := collect(t, s); !errors.Is(err, escalated) {
		t.Fatalf("error = %v, want escalated", err)
	}
}

func TestStageUpstreamFault(t *testing.T) {
	ctx := context.Background()
	src := FromSeq2(ctx, func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(0, errBoom)
	})
	s := NewStage("after-source", Options[int]{Parallelism: 2}, double)
	if err := s.Link(ctx, src); err != nil {
		t.Fatalf("Link: %v", err)
	}
	got, err := collect(t, s)
	if !errors.Is(err, errBoom) {
		t.Fatalf("error = %v, want errBoom", err)
	}
	if len(got) != 1 {
		t.Errorf("expected the item before the fault to pass, got %v", got)
	}
}

func TestStageContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	endless := func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}
	s := NewStage("endless", Options[int]{Parallelism: 2}, double)
	if err := s.Link(ctx, FromSeq(ctx, endless)); err != nil {
		t.Fatalf("Link: %v", err)
	}

	seen := 0
	err := Drain(s, func(int) {
		seen++
		if seen == 10 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if s.State() != StateFaulted {
		t.Errorf("state = %s, want faulted", s.State())
	}
}

func TestStageStateTransitions(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	s := NewStage("gated", Options[int]{Parallelism: 1}, func(_ context.Context, v int) (int, error) {
		close(started)
		<-release
		return v, nil
	})
	if s.State() != StateCreated {
		t.Fatalf("state = %s, want created", s.State())
	}
	if err := s.Link(ctx, FromSlice(ctx, []int{1})); err != nil {
		t.Fatalf("Link: %v", err)
	}
	<-started
	waitForState(t, s, StateDraining)

	close(release)
	if _, err := collect(t, s); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if s.State() != StateCompleted || !s.State().Terminal() {
		t.Errorf("state = %s, want completed", s.State())
	}
}

func TestStageLinkTwice(t *testing.T) {
	ctx := context.Background()
	s := NewStage("once", Options[int]{}, double)
	if err := s.Link(ctx, FromSlice(ctx, numbers(1))); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := s.Link(ctx, FromSlice(ctx, numbers(1))); !errors.Is(err, ErrAlreadyLinked) {
		t.Errorf("second Link = %v, want ErrAlreadyLinked", err)
	}
	if _, err := collect(t, s); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateCreated:   "created",
		StateRunning:   "running",
		StateDraining:  "draining",
		StateCompleted: "completed",
		StateFaulted:   "faulted",
		State(99):      "unknown",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), name)
		}
	}
}
