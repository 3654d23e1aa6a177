package callgroup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeduplication(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32
	started := make(chan struct{})

	fn := func() (int, error) {
		calls.Add(1)
		close(started)
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]Result[int], n)

	// First caller starts the work.
	wg.Go(func() {
		results[0] = <-g.DoChan("docs.jsonl", fn)
	})

	// Wait for fn to start, then pile on.
	<-started
	for i := 1; i < n; i++ {
		wg.Go(func() {
			results[i] = <-g.DoChan("docs.jsonl", fn)
		})
	}

	wg.Wait()

	for i, r := range results {
		if r.Err != nil {
			t.Errorf("caller %d got error: %v", i, r.Err)
		}
		if r.Val != 42 {
			t.Errorf("caller %d got %d, want 42", i, r.Val)
		}
		if r.Shared != (i > 0) {
			t.Errorf("caller %d: shared = %v", i, r.Shared)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
}

func TestIndependentKeys(t *testing.T) {
	var g Group[int, struct{}]
	var calls atomic.Int32

	fn := func() (struct{}, error) {
		calls.Add(1)
		return struct{}{}, nil
	}

	var wg sync.WaitGroup
	for _, key := range []int{1, 2, 3} {
		wg.Go(func() {
			<-g.DoChan(key, fn)
		})
	}

	wg.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("fn called %d times, want 3", got)
	}
}

func TestErrorPropagation(t *testing.T) {
	var g Group[int, string]
	sentinel := errors.New("failed")
	started := make(chan struct{})

	ch1 := g.DoChan(1, func() (string, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return "", sentinel
	})
	<-started

	ch2 := g.DoChan(1, func() (string, error) {
		t.Error("should not execute")
		return "", nil
	})

	r1 := <-ch1
	r2 := <-ch2

	if !errors.Is(r1.Err, sentinel) {
		t.Errorf("caller 1: got %v, want %v", r1.Err, sentinel)
	}
	if !errors.Is(r2.Err, sentinel) {
		t.Errorf("caller 2: got %v, want %v", r2.Err, sentinel)
	}
}

func TestReuseAfterCompletion(t *testing.T) {
	var g Group[int, int]
	var calls atomic.Int32

	fn := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	first, err := g.Do(1, fn)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	// The key is forgotten once the first call returns.
	second, err := g.Do(1, fn)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("got %d, %d; want 1, 2", first, second)
	}
}
