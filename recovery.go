package rxkit

import (
	"sync"

	"github.com/gokit/errors"
)

//***************************************************************************
// OnErrorReturn
//***************************************************************************

// OnErrorReturn returns an Observable intercepting a source error and
// substituting a final value computed from it, after which the stream
// completes. Values and completion pass through untouched. A panic in fn
// surfaces as a terminal error tagged ErrHandlerFailure and is not
// intercepted again.
func (o Observable) OnErrorReturn(fn func(error) interface{}) Observable {
	src := o.src
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		out := Guard(h, down)
		h.Defer(src.Subscribe(returnObserver{out: out, fn: fn}).Stop)
		return h
	}))
}

type returnObserver struct {
	out Observer
	fn  func(error) interface{}
}

// Next implements the Observer interface.
func (r returnObserver) Next(v interface{}) {
	r.out.Next(v)
}

// Error implements the Observer interface, substituting the terminal
// error with a final value followed by completion.
func (r returnObserver) Error(err error) {
	var sub interface{}
	if ferr := guarded(ErrHandlerFailure, func() error {
		sub = r.fn(err)
		return nil
	}); ferr != nil {
		r.out.Error(ferr)
		return
	}
	r.out.Next(sub)
	r.out.Complete()
}

// Complete implements the Observer interface.
func (r returnObserver) Complete() {
	r.out.Complete()
}

//***************************************************************************
// OnErrorResumeNext
//***************************************************************************

// OnErrorResumeNext returns an Observable replacing a failed source with
// the giving fallback stream. The fallback's signals are forwarded
// verbatim, including a possible second error, which is never
// intercepted again by this operator.
func (o Observable) OnErrorResumeNext(next ObservableSource) Observable {
	return o.resuming(func(error) (ObservableSource, error) {
		return next, nil
	}, nil)
}

// OnErrorResumeWith returns an Observable like OnErrorResumeNext with
// the fallback stream computed from the encountered error. The builder
// may wrap the error into a new failing stream to chain errors.
func (o Observable) OnErrorResumeWith(build func(error) ObservableSource) Observable {
	return o.resuming(func(err error) (src ObservableSource, ferr error) {
		ferr = guarded(ErrHandlerFailure, func() error {
			src = build(err)
			return nil
		})
		return
	}, nil)
}

// OnExceptionResumeNext returns an Observable which intercepts only
// exception-class errors, as decided by the stream's classifier; any
// other error kind is forwarded to the consumer unmodified.
func (o Observable) OnExceptionResumeNext(next ObservableSource) Observable {
	classify := o.classify
	if classify == nil {
		classify = IsException
	}
	return o.resuming(func(error) (ObservableSource, error) {
		return next, nil
	}, classify)
}

func (o Observable) resuming(resolve func(error) (ObservableSource, error), classify Classifier) Observable {
	src := o.src
	log, events := o.log, o.events
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		out := Guard(h, down)
		run := &resumeRun{
			h:        h,
			out:      out,
			resolve:  resolve,
			classify: classify,
			log:      log,
			events:   events,
		}
		h.Defer(run.stopCurrent)
		run.trackSource(src.Subscribe(&resumeObserver{run: run}))
		return h
	}))
}

// resumeRun owns the single active inner subscription of a resume
// operator, swapping it for the fallback's subscription on interception.
type resumeRun struct {
	h        *Handle
	out      Observer
	resolve  func(error) (ObservableSource, error)
	classify Classifier
	log      Logs
	events   *Eventer

	ml       sync.Mutex
	current  Subscription
	switched bool
}

// track records the active inner subscription, stopping it instead if
// the outer subscription already ended.
func (r *resumeRun) track(sub Subscription) {
	r.ml.Lock()
	if !r.h.IsActive() {
		r.ml.Unlock()
		sub.Stop()
		return
	}
	r.current = sub
	r.ml.Unlock()
}

// trackSource records the original source's subscription. A source
// failing synchronously inside Subscribe switches to the fallback before
// Subscribe returns, in which case the fallback's subscription already
// holds the slot and the spent original must not displace it.
func (r *resumeRun) trackSource(sub Subscription) {
	r.ml.Lock()
	if r.switched || !r.h.IsActive() {
		r.ml.Unlock()
		sub.Stop()
		return
	}
	r.current = sub
	r.ml.Unlock()
}

func (r *resumeRun) stopCurrent() {
	r.ml.Lock()
	cur := r.current
	r.current = nil
	r.ml.Unlock()
	if cur != nil {
		cur.Stop()
	}
}

// markSwitched flags the transition to the fallback stream, returning
// false if it had already happened.
func (r *resumeRun) markSwitched() bool {
	r.ml.Lock()
	defer r.ml.Unlock()
	if r.switched {
		return false
	}
	r.switched = true
	return true
}

type resumeObserver struct {
	run *resumeRun
}

// Next implements the Observer interface.
func (ro *resumeObserver) Next(v interface{}) {
	ro.run.out.Next(v)
}

// Complete implements the Observer interface.
func (ro *resumeObserver) Complete() {
	ro.run.out.Complete()
}

// Error implements the Observer interface. The first error may be
// intercepted and replaced by a subscription to the fallback stream; an
// error from the fallback itself is forwarded verbatim.
func (ro *resumeObserver) Error(err error) {
	run := ro.run
	if !run.markSwitched() {
		run.out.Error(err)
		return
	}
	if run.classify != nil && !run.classify(err) {
		run.out.Error(err)
		return
	}

	run.stopCurrent()

	next, ferr := run.resolve(err)
	if ferr != nil {
		run.log.Emit(ERROR, LogMsg("fallback stream builder failed").
			Err("cause", err).Err("error", ferr).Write())
		run.out.Error(ferr)
		return
	}
	if next == nil {
		run.out.Error(errors.Wrap(ErrHandlerFailure, "fallback stream builder returned no source"))
		return
	}

	run.log.Emit(DEBUG, LogMsg("resuming stream with fallback").Err("cause", err).Write())
	if run.events != nil {
		run.events.Publish(ResumeSwitched{Ref: run.h.ID(), Err: err})
	}
	run.track(next.Subscribe(ro))
}
