package rxkit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	gerrors "github.com/gokit/errors"

	"github.com/gokit/rxkit"
)

func failing(values []interface{}, err error) rxkit.Observable {
	return rxkit.Create(func(o rxkit.Observer, _ *rxkit.Handle) {
		for _, v := range values {
			o.Next(v)
		}
		o.Error(err)
	})
}

func TestOnErrorReturnSubstitutesValue(t *testing.T) {
	boom := errors.New("bad day")
	rec := newRecorder()

	sub := failing([]interface{}{1, 2}, boom).OnErrorReturn(func(err error) interface{} {
		assert.Equal(t, boom, err)
		return "fallback"
	}).Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1, 2, "fallback"}, rec.Values())
	assert.True(t, rec.Completed())
	assert.NoError(t, rec.Err())
	assert.Equal(t, 1, rec.Terminals())
	assert.False(t, sub.IsActive())
}

func TestOnErrorReturnForwardsCompletion(t *testing.T) {
	rec := newRecorder()
	rxkit.Just(1, 2).OnErrorReturn(func(error) interface{} {
		t.Fatal("substitution must not run on completion")
		return nil
	}).Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1, 2}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestOnErrorReturnHandlerPanic(t *testing.T) {
	rec := newRecorder()
	failing(nil, errors.New("bad day")).OnErrorReturn(func(error) interface{} {
		panic("substitution blew up")
	}).Subscribe(rec)

	rec.wait(t)
	assert.Error(t, rec.Err())
	assert.True(t, gerrors.IsAny(rec.Err(), rxkit.ErrHandlerFailure))
	assert.False(t, rec.Completed())
}

func TestOnErrorResumeNextSwitchesToFallback(t *testing.T) {
	rec := newRecorder()
	failing([]interface{}{1, 2}, errors.New("bad day")).
		OnErrorResumeNext(rxkit.Just(3, 4)).
		Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1, 2, 3, 4}, rec.Values())
	assert.True(t, rec.Completed())
	assert.NoError(t, rec.Err())
}

func TestOnErrorResumeNextCancelStopsFallback(t *testing.T) {
	fh := rxkit.NewHandle()
	fallback := rxkit.SourceFunc(func(rxkit.Observer) rxkit.Subscription {
		return fh
	})

	rec := newRecorder()
	sub := rxkit.Throw(errors.New("bad day")).
		OnErrorResumeNext(fallback).
		Subscribe(rec)

	// The source failed inside Subscribe, so the fallback already holds
	// the inner slot; cancelling the outer subscription must reach it.
	assert.True(t, fh.IsActive())
	sub.Stop()
	assert.False(t, fh.IsActive())
	assert.Equal(t, 0, rec.Terminals())
}

func TestOnErrorResumeWithChainsErrors(t *testing.T) {
	boom := errors.New("bad day")
	rec := newRecorder()

	failing([]interface{}{1}, boom).OnErrorResumeWith(func(err error) rxkit.ObservableSource {
		return rxkit.Throw(gerrors.Wrap(err, "fallback gave up"))
	}).Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1}, rec.Values())
	assert.Error(t, rec.Err())
	assert.True(t, gerrors.IsAny(rec.Err(), boom))
	assert.Equal(t, 1, rec.Terminals())
}

func TestOnErrorResumeWithBuilderPanic(t *testing.T) {
	rec := newRecorder()
	failing(nil, errors.New("bad day")).OnErrorResumeWith(func(error) rxkit.ObservableSource {
		panic("builder blew up")
	}).Subscribe(rec)

	rec.wait(t)
	assert.True(t, gerrors.IsAny(rec.Err(), rxkit.ErrHandlerFailure))
}

func TestOnExceptionResumeNextIntercepts(t *testing.T) {
	rec := newRecorder()
	failing([]interface{}{1, 2}, errors.New("transient")).
		OnExceptionResumeNext(rxkit.Just(3)).
		Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1, 2, 3}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestOnExceptionResumeNextForwardsDefects(t *testing.T) {
	defect := rxkit.Fatal(errors.New("programming defect"))
	rec := newRecorder()

	failing([]interface{}{1, 2}, defect).
		OnExceptionResumeNext(rxkit.Just(3)).
		Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, []interface{}{1, 2}, rec.Values())
	assert.Error(t, rec.Err())
	assert.True(t, gerrors.IsAny(rec.Err(), rxkit.ErrFatal))
	assert.False(t, rec.Completed())
}

func TestOnExceptionResumeNextCustomClassifier(t *testing.T) {
	boom := errors.New("whitelisted")
	rec := newRecorder()

	src := failing(nil, boom)
	rxkit.New(src, rxkit.WithClassifier(func(err error) bool {
		return !gerrors.IsAny(err, boom)
	})).OnExceptionResumeNext(rxkit.Just("resumed")).Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, boom, rec.Err())
	assert.Empty(t, rec.Values())
}
