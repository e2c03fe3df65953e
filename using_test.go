package rxkit_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	gerrors "github.com/gokit/errors"

	"github.com/gokit/rxkit"
)

// scopeProbe tracks the lifecycle of a Using scope's resource alongside
// the downstream signals, preserving ordering between the two.
type scopeProbe struct {
	ml       sync.Mutex
	order    []string
	disposed int
}

func (p *scopeProbe) mark(step string) {
	p.ml.Lock()
	p.order = append(p.order, step)
	p.ml.Unlock()
}

func (p *scopeProbe) dispose(interface{}) error {
	p.ml.Lock()
	p.disposed++
	p.order = append(p.order, "dispose")
	p.ml.Unlock()
	return nil
}

func (p *scopeProbe) snapshot() ([]string, int) {
	p.ml.Lock()
	defer p.ml.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out, p.disposed
}

func TestUsingDisposesAfterCompletion(t *testing.T) {
	probe := new(scopeProbe)

	sub := rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(r interface{}) (rxkit.ObservableSource, error) {
			assert.Equal(t, "resource", r)
			return rxkit.Just(1, 2), nil
		},
		probe.dispose,
	).Subscribe(rxkit.Callbacks{
		OnComplete: func() { probe.mark("complete") },
	})

	order, disposed := probe.snapshot()
	assert.Equal(t, []string{"complete", "dispose"}, order)
	assert.Equal(t, 1, disposed)
	assert.False(t, sub.IsActive())
}

func TestUsingDisposesAfterError(t *testing.T) {
	boom := errors.New("bad day")
	probe := new(scopeProbe)

	rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(interface{}) (rxkit.ObservableSource, error) { return rxkit.Throw(boom), nil },
		probe.dispose,
	).Subscribe(rxkit.Callbacks{
		OnError: func(err error) {
			assert.Equal(t, boom, err)
			probe.mark("error")
		},
	})

	order, disposed := probe.snapshot()
	assert.Equal(t, []string{"error", "dispose"}, order)
	assert.Equal(t, 1, disposed)
}

func TestUsingDisposesOnCancellation(t *testing.T) {
	probe := new(scopeProbe)
	rec := newRecorder()

	sub := rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(interface{}) (rxkit.ObservableSource, error) { return rxkit.Never(), nil },
		probe.dispose,
	).Subscribe(rec)

	sub.Stop()
	_, disposed := probe.snapshot()
	assert.Equal(t, 1, disposed)
	assert.False(t, sub.IsActive())
	assert.Equal(t, 0, rec.Terminals())

	sub.Stop()
	_, disposed = probe.snapshot()
	assert.Equal(t, 1, disposed)
}

func TestUsingFactoryFailure(t *testing.T) {
	noAcquire := errors.New("no resource today")
	probe := new(scopeProbe)
	rec := newRecorder()

	rxkit.Using(
		func() (interface{}, error) { return nil, noAcquire },
		func(interface{}) (rxkit.ObservableSource, error) {
			t.Fatal("build must not run when acquisition fails")
			return nil, nil
		},
		probe.dispose,
	).Subscribe(rec)

	rec.wait(t)
	assert.Equal(t, noAcquire, rec.Err())
	_, disposed := probe.snapshot()
	assert.Equal(t, 0, disposed)
}

func TestUsingBuildFailureDisposes(t *testing.T) {
	noBuild := errors.New("cannot build")
	probe := new(scopeProbe)
	rec := newRecorder()

	rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(interface{}) (rxkit.ObservableSource, error) { return nil, noBuild },
		probe.dispose,
	).Subscribe(rec)

	rec.wait(t)
	assert.Error(t, rec.Err())
	assert.True(t, gerrors.IsAny(rec.Err(), noBuild))
	_, disposed := probe.snapshot()
	assert.Equal(t, 1, disposed)
}

func TestUsingBuildPanicDisposes(t *testing.T) {
	probe := new(scopeProbe)
	rec := newRecorder()

	rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(interface{}) (rxkit.ObservableSource, error) { panic("build blew up") },
		probe.dispose,
	).Subscribe(rec)

	rec.wait(t)
	assert.True(t, gerrors.IsAny(rec.Err(), rxkit.ErrHandlerFailure))
	_, disposed := probe.snapshot()
	assert.Equal(t, 1, disposed)
}

func TestUsingDisposeFailureNeverDoubleTerminates(t *testing.T) {
	events := rxkit.NewEventer()

	var ml sync.Mutex
	var disposals []rxkit.ResourceDisposed
	events.Subscribe(func(m interface{}) {
		if ev, ok := m.(rxkit.ResourceDisposed); ok {
			ml.Lock()
			disposals = append(disposals, ev)
			ml.Unlock()
		}
	})

	rec := newRecorder()
	rxkit.Using(
		func() (interface{}, error) { return "resource", nil },
		func(interface{}) (rxkit.ObservableSource, error) { return rxkit.Just(1), nil },
		func(interface{}) error { return errors.New("release failed") },
		rxkit.WithEvents(events),
	).Subscribe(rec)

	rec.wait(t)

	// The stream already delivered its terminal; the disposal failure is
	// reported out of band, never as a second terminal signal.
	assert.True(t, rec.Completed())
	assert.NoError(t, rec.Err())
	assert.Equal(t, 1, rec.Terminals())

	ml.Lock()
	defer ml.Unlock()
	assert.Len(t, disposals, 1)
	assert.Error(t, disposals[0].Err)
}
