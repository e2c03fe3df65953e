package rxkit

import (
	"github.com/gokit/errors"
)

// errors ...
var (
	// ErrHandlerFailure tags an error raised by a user-supplied callback
	// (substitution function, resume builder, retry handler, resource
	// factory/build/dispose). Such failures are surfaced to the consumer
	// as a terminal error and are never fed back into the recovery
	// operator that produced them.
	ErrHandlerFailure = errors.New("stream handler failed")

	// ErrSourcePanic tags a panic recovered from a producer function.
	ErrSourcePanic = errors.New("stream source panicked")

	// ErrFatal tags an error explicitly marked non-recoverable through
	// the Fatal function.
	ErrFatal = errors.New("fatal stream error")
)

// Classifier defines a predicate deciding whether a giving error counts
// as exception-class, i.e. one a conditional recovery operator may
// intercept.
type Classifier func(error) bool

// IsException implements the default Classifier: every error qualifies
// unless it carries one of the defect tags (handler failure, producer
// panic, explicit Fatal marking), which must never be swallowed by a
// recovery operator.
func IsException(err error) bool {
	return !errors.IsAny(err, ErrHandlerFailure, ErrSourcePanic, ErrFatal)
}

// Fatal marks a giving error as non-recoverable, excluding it from
// interception by OnExceptionResumeNext under the default classifier.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(ErrFatal, err.Error())
}

// guarded runs fn, converting a panic into an error wrapping the giving
// tag so the failure can never re-enter the operator it escaped from.
func guarded(tag error, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrap(tag, "recovered panic: %+v", rec)
		}
	}()
	return fn()
}
