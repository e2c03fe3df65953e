package rxkit

import (
	"sync"

	"github.com/gokit/errors"
	"github.com/gokit/xid"
)

//***************************************************************************
// Using
//***************************************************************************

// Using returns an Observable binding a resource's lifetime to each
// subscription's lifetime. Per subscription: factory acquires the
// resource, build produces the stream to subscribe, and dispose releases
// the resource exactly once, whichever comes first of the stream's
// terminal signal, the subscription's cancellation or a build failure.
// On the terminal path disposal runs after the terminal has been
// delivered downstream but before the subscription winds down; on
// cancellation it runs synchronously within Stop.
//
// A factory failure surfaces as the subscription's error without build
// or dispose being called. A dispose failure after a delivered terminal
// is logged and published as a ResourceDisposed event, never delivered
// as a second terminal signal.
func Using(factory func() (interface{}, error), build func(interface{}) (ObservableSource, error), dispose func(interface{}) error, ops ...Option) Observable {
	var o Observable
	o = New(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()

		var res interface{}
		if err := guarded(ErrHandlerFailure, func() (ferr error) {
			res, ferr = factory()
			return
		}); err != nil {
			Guard(h, down).Error(err)
			return h
		}

		scope := &resourceScope{
			ref:     h.ID(),
			res:     res,
			dispose: dispose,
			log:     o.log,
			events:  o.events,
		}
		h.Defer(scope.releaseLogged)
		if o.events != nil {
			o.events.Publish(ResourceAcquired{Ref: h.ID()})
		}

		var src ObservableSource
		err := guarded(ErrHandlerFailure, func() (ferr error) {
			src, ferr = build(res)
			return
		})
		if err == nil && src == nil {
			err = errors.Wrap(ErrHandlerFailure, "resource build returned no source")
		}
		if err != nil {
			if derr := scope.release(); derr != nil {
				err = errors.Wrap(err, "resource disposal also failed: %+s", derr)
			}
			Guard(h, down).Error(err)
			return h
		}

		g := newGate(down)
		h.Defer(g.seal)
		h.Defer(src.Subscribe(&usingObserver{g: g, h: h, scope: scope}).Stop)
		return h
	}), ops...)
	return o
}

// usingObserver forwards the inner stream's signals unchanged, slotting
// resource disposal between terminal delivery and subscription
// teardown.
type usingObserver struct {
	g     *gate
	h     *Handle
	scope *resourceScope
}

// Next implements the Observer interface.
func (u *usingObserver) Next(v interface{}) {
	u.g.Next(v)
}

// Error implements the Observer interface.
func (u *usingObserver) Error(err error) {
	u.g.Error(err)
	u.scope.releaseLogged()
	u.h.Stop()
}

// Complete implements the Observer interface.
func (u *usingObserver) Complete() {
	u.g.Complete()
	u.scope.releaseLogged()
	u.h.Stop()
}

//***************************************************************************
// resourceScope
//***************************************************************************

// resourceScope funnels every release path of an acquired resource
// through one guarded disposal call, so dispose runs at most once no
// matter which termination origin fires first or how often.
type resourceScope struct {
	ref     xid.ID
	res     interface{}
	dispose func(interface{}) error
	log     Logs
	events  *Eventer

	ml   sync.Mutex
	done bool
	err  error
}

// release disposes the resource on first call and returns the disposal
// failure, if any; later calls return the recorded result without
// disposing again.
func (s *resourceScope) release() error {
	s.ml.Lock()
	if s.done {
		err := s.err
		s.ml.Unlock()
		return err
	}
	s.done = true
	s.ml.Unlock()

	var err error
	if s.dispose != nil {
		err = guarded(ErrHandlerFailure, func() error {
			return s.dispose(s.res)
		})
	}

	s.ml.Lock()
	s.err = err
	s.ml.Unlock()

	if s.events != nil {
		s.events.Publish(ResourceDisposed{Ref: s.ref, Err: err})
	}
	return err
}

// releaseLogged releases the resource, reporting a disposal failure on
// the stream's logger instead of returning it.
func (s *resourceScope) releaseLogged() {
	if err := s.release(); err != nil {
		s.log.Emit(ERROR, LogMsg("resource disposal failed").
			String("ref", s.ref.String()).Err("error", err).Write())
	}
}
