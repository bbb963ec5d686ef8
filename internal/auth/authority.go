// Package auth is the binding core: the serialized authority that owns all
// identity and guest-state mutation, the verification-code table, and the
// binding workflow operations exposed to the OneBot and REST surfaces.
package auth

import "context"

// Authority is the single serialized execution context. Everything that
// mutates bindings, bots, verification codes or the guest set is scheduled
// here and runs in strict arrival order, so a command's whole
// read-check-write sequence is one unit and never interleaves with another.
type Authority struct {
	ch   chan task
	stop chan struct{}
}

type task struct {
	fn   func()
	done chan struct{}
}

func NewAuthority(queue int) *Authority {
	if queue <= 0 {
		queue = 256
	}
	return &Authority{
		ch:   make(chan task, queue),
		stop: make(chan struct{}),
	}
}

// Run consumes scheduled units until the context is cancelled or Stop is
// called. It must run on exactly one goroutine.
func (a *Authority) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stop:
			return nil
		case t := <-a.ch:
			t.fn()
			close(t.done)
		}
	}
}

func (a *Authority) Stop() { close(a.stop) }

// Do schedules fn onto the authority and blocks until it has run or the
// context expires. On expiry the caller gets the context error; fn may still
// run later, which is harmless because abandoned units only observe state
// the authority owns anyway.
func (a *Authority) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case a.ch <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stop:
		return context.Canceled
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth is the current queue backlog, for metrics.
func (a *Authority) Depth() int { return len(a.ch) }
