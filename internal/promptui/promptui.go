// Package promptui tracks in-flight interactive prompts: a command posts a
// question with UI components, a later component interaction resolves it, and
// the asking goroutine waits with a timeout.
package promptui

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout is how long a prompt waits for the user before falling back
// to its default value.
const DefaultTimeout = 180 * time.Second

// Prompt is a one-shot value settled by a UI interaction. The zero value is
// not usable; create prompts through a Registry.
type Prompt[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
}

func newPrompt[T any]() *Prompt[T] {
	return &Prompt[T]{done: make(chan struct{})}
}

// Resolve settles the prompt. Later calls are no-ops, so duplicate
// interaction events are harmless.
func (p *Prompt[T]) Resolve(val T) {
	p.once.Do(func() {
		p.val = val
		close(p.done)
	})
}

// Wait blocks until the prompt resolves, the timeout elapses, or ctx is
// cancelled. On timeout or cancellation it returns fallback and false.
func (p *Prompt[T]) Wait(ctx context.Context, timeout time.Duration, fallback T) (T, bool) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.val, true
	case <-timer.C:
		return fallback, false
	case <-ctx.Done():
		return fallback, false
	}
}

// Registry indexes open prompts by the ID embedded in the UI component's
// custom identifier. Safe for concurrent use from the gateway event loop.
type Registry[T any] struct {
	mu      sync.Mutex
	pending map[string]*Prompt[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{pending: make(map[string]*Prompt[T])}
}

// Open registers a new prompt under id, replacing any prior prompt with the
// same id.
func (r *Registry[T]) Open(id string) *Prompt[T] {
	p := newPrompt[T]()
	r.mu.Lock()
	r.pending[id] = p
	r.mu.Unlock()
	return p
}

// Resolve settles the prompt registered under id and removes it. It reports
// whether a prompt was waiting; late interactions on an expired prompt return
// false.
func (r *Registry[T]) Resolve(id string, val T) bool {
	r.mu.Lock()
	p, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.Resolve(val)
	return true
}

// Close removes the prompt registered under id without resolving it. Callers
// use it to clean up after Wait returns on timeout.
func (r *Registry[T]) Close(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}
