// Package rxkit implements the error-recovery and resource-management core
// of a push-based stream library: operators which intercept failure signals
// mid-stream and substitute values or fallback streams, controllers which
// resubscribe failed streams under policy control, and a resource scope
// which binds acquisition and release of an external resource to the
// lifetime of a subscription.
package rxkit

//***************************************************************************
// Observer
//***************************************************************************

// Observer consumes the signal sequence of a stream. A stream delivers
// zero or more Next calls followed by at most one terminal call, either
// Error or Complete. After a terminal call no further calls are made on
// the same subscription.
type Observer interface {
	Next(interface{})
	Error(error)
	Complete()
}

// Callbacks implements the Observer interface from a set of optional
// functions, where a nil function simply drops its signal.
type Callbacks struct {
	OnNext     func(interface{})
	OnError    func(error)
	OnComplete func()
}

// Next calls the OnNext function if provided.
func (c Callbacks) Next(v interface{}) {
	if c.OnNext != nil {
		c.OnNext(v)
	}
}

// Error calls the OnError function if provided.
func (c Callbacks) Error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Complete calls the OnComplete function if provided.
func (c Callbacks) Complete() {
	if c.OnComplete != nil {
		c.OnComplete()
	}
}

//***************************************************************************
// ObservableSource
//***************************************************************************

// ObservableSource is the minimal producer contract. Every call to
// Subscribe starts an independent run of the producer and its side
// effects; retrying a source means calling Subscribe on it again.
type ObservableSource interface {
	Subscribe(Observer) Subscription
}

// SourceFunc adapts a function into an ObservableSource.
type SourceFunc func(Observer) Subscription

// Subscribe implements the ObservableSource interface.
func (f SourceFunc) Subscribe(o Observer) Subscription {
	return f(o)
}

//***************************************************************************
// Observable
//***************************************************************************

// Option configures an Observable returned by New or Using.
type Option func(*Observable)

// WithLogs sets the logger used by operators derived from the observable.
func WithLogs(log Logs) Option {
	return func(o *Observable) {
		o.log = log
	}
}

// WithEvents sets the event stream on which operators publish their
// lifecycle events.
func WithEvents(events *Eventer) Option {
	return func(o *Observable) {
		o.events = events
	}
}

// WithClassifier sets the predicate OnExceptionResumeNext consults to
// decide whether a giving error may be intercepted.
func WithClassifier(classify Classifier) Option {
	return func(o *Observable) {
		o.classify = classify
	}
}

// Observable decorates an ObservableSource with the recovery and
// lifecycle operator surface. The zero value is not usable; construct
// with New. Configuration attached through options is inherited by every
// observable derived from it.
type Observable struct {
	src      ObservableSource
	log      Logs
	events   *Eventer
	classify Classifier
}

// New returns an Observable decorating the provided source.
func New(src ObservableSource, ops ...Option) Observable {
	o := Observable{src: src, log: DrainLog{}, classify: IsException}
	for _, op := range ops {
		op(&o)
	}
	return o
}

// Subscribe implements the ObservableSource interface, beginning delivery
// of the stream's signals to the provided observer.
func (o Observable) Subscribe(ob Observer) Subscription {
	return o.src.Subscribe(ob)
}

// derive returns a copy of the observable over a new source, keeping
// the attached configuration.
func (o Observable) derive(src ObservableSource) Observable {
	o.src = src
	return o
}
