package bridge

import (
	"context"
)

// Invoker calls the guest function behind a closure with its two state words.
type Invoker func(ctx context.Context, a, b uint32, args ...any) (any, error)

// Destructor frees the guest-owned environment of a closure.
type Destructor func(ctx context.Context, a, b uint32) error

// Closure is a host-callable wrapper around a guest closure.
//
// The guest environment stays alive while refs > 0. Each call holds an extra
// reference and clears a for its duration, so a closure that drops itself from
// inside its own invocation is destroyed after the call returns, never during.
type Closure struct {
	a, b uint32
	refs int

	invoke  Invoker
	destroy Destructor
}

// NewClosure wraps guest state (a, b). The closure starts with one reference,
// owned by whoever holds its handle.
func NewClosure(a, b uint32, invoke Invoker, destroy Destructor) *Closure {
	return &Closure{
		a:       a,
		b:       b,
		refs:    1,
		invoke:  invoke,
		destroy: destroy,
	}
}

// Call invokes the guest closure. this is ignored; guest closures are not methods.
func (c *Closure) Call(ctx context.Context, this any, args ...any) (result any, err error) {
	if c.a == 0 {
		return nil, &ClosureDestroyedError{A: c.a, B: c.b}
	}

	c.refs++
	a := c.a
	c.a = 0

	defer func() {
		c.refs--
		if c.refs == 0 {
			if derr := c.destroy(ctx, a, c.b); derr != nil && err == nil {
				err = derr
			}
			return
		}
		c.a = a
	}()

	return c.invoke(ctx, a, c.b, args...)
}

// Drop releases the handle owner's reference. It reports true when that was the
// last reference; the closure is then inactive and the guest frees it. When a
// call is in flight Drop returns false and the call's cleanup runs the destructor.
func (c *Closure) Drop() bool {
	c.refs--
	if c.refs == 0 {
		c.a = 0
		return true
	}
	return false
}

// Active reports whether the closure can still be invoked.
func (c *Closure) Active() bool {
	return c.refs > 0
}

// Refs returns the current reference count.
func (c *Closure) Refs() int {
	return c.refs
}
