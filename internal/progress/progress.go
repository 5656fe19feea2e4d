// Package progress defines the yield points long-running work passes through,
// so the host can pump its event loop and the user can cancel.
package progress

import (
	"context"
	"errors"
)

// ErrCancelled is returned by a Yielder when the user aborts the work.
var ErrCancelled = errors.New("cancelled by user")

// Yielder is called between units of work. A non-nil error aborts the work.
type Yielder interface {
	Yield(ctx context.Context, done, total int) error
}

// Func adapts a function to Yielder.
type Func func(ctx context.Context, done, total int) error

func (f Func) Yield(ctx context.Context, done, total int) error {
	return f(ctx, done, total)
}

// Nop only honours context cancellation.
var Nop Yielder = Func(func(ctx context.Context, _, _ int) error {
	return ctx.Err()
})

// Or returns y, or Nop when y is nil.
func Or(y Yielder) Yielder {
	if y == nil {
		return Nop
	}
	return y
}
