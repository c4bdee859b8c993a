// Package executor runs units of backend work either inline on the caller's
// goroutine or on a privately owned worker pool.
//
// The two variants are chosen once, when a volume is constructed, and stored as a
// field. Every store call of the backend goes through Executor.Do.
package executor

import (
	"context"
	stderr "errors"

	"github.com/objectfs/s3backend/pkg/errors"
)

// Func is a unit of work.
type Func func(ctx context.Context) error

// Executor runs a unit of work exactly once and returns its error. Failures of the
// executor itself are reported as DISPATCH_FAILURE and never confused with the
// error returned by the work.
type Executor interface {
	Do(ctx context.Context, fn Func) error
}

// Executor-level failure causes, wrapped in a DISPATCH_FAILURE error.
var (
	ErrClosed = stderr.New("executor closed")
	ErrPanic  = stderr.New("task panicked")
)

// Ambient runs work inline on the calling goroutine. The Go scheduler already
// multiplexes goroutines, so no pool of its own is needed.
type Ambient struct{}

// NewAmbient returns the inline executor.
func NewAmbient() Ambient {
	return Ambient{}
}

// Do runs fn on the caller's goroutine.
func (Ambient) Do(ctx context.Context, fn Func) error {
	return fn(ctx)
}

func dispatchFailure(cause error, message string) *errors.Error {
	return errors.Wrap(cause, errors.ErrCodeDispatchFailure, "executor", "dispatch", message)
}
