// Package callgroup deduplicates concurrent calls by key.
//
// While a call for a key is in flight, further requests for the same key
// wait for it and share its value and error. Once it returns, the key is
// forgotten and the next request runs the function again.
package callgroup

import "sync"

// Result is the outcome of one call.
type Result[V any] struct {
	Val V
	Err error
	// Shared is true for callers that joined a call started by another.
	Shared bool
}

// Group deduplicates concurrent function calls by key.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// DoChan runs fn if no call is in flight for key, otherwise joins the call
// in flight. The returned channel receives exactly one Result and is never
// closed.
func (g *Group[K, V]) DoChan(key K, fn func() (V, error)) <-chan Result[V] {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		return c.wait(true)
	}

	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	go func() {
		c.val, c.err = fn()

		// Forget the key before waking waiters, so a caller that has seen
		// the result always starts a fresh call.
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(c.done)
	}()

	return c.wait(false)
}

// Do is DoChan for callers that block anyway.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	r := <-g.DoChan(key, fn)
	return r.Val, r.Err
}

func (c *call[V]) wait(shared bool) <-chan Result[V] {
	ch := make(chan Result[V], 1)
	go func() {
		<-c.done
		ch <- Result[V]{Val: c.val, Err: c.err, Shared: shared}
	}()
	return ch
}
