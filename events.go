package rxkit

import (
	"github.com/gokit/es"
	"github.com/gokit/xid"
)

//***************************************************************************
// Eventer
//***************************************************************************

// Eventer implements a stream lifecycle event bus by decorating the
// gokit es event implementation. Operators publish their lifecycle
// events here when one is attached through WithEvents.
type Eventer struct {
	es es.EventStream
}

// NewEventer returns an instance of an Eventer.
func NewEventer() *Eventer {
	return &Eventer{es: es.New()}
}

// Publish publishes a giving event.
func (e *Eventer) Publish(m interface{}) {
	e.es.Publish(m)
}

// Subscribe adds a giving subscription using the provided handler.
func (e *Eventer) Subscribe(handler func(interface{})) es.Subscription {
	return e.es.Subscribe(func(m interface{}) {
		handler(m)
	})
}

//***************************************************************************
// Events
//***************************************************************************

// RetryAttempted is published after a failed attempt has been granted a
// resubscription, carrying the error which caused it.
type RetryAttempted struct {
	Ref     xid.ID
	Attempt int64
	Err     error
}

// Message implements the LogMessage interface.
func (e RetryAttempted) Message() string {
	return LogMsg("stream attempt retried").String("ref", e.Ref.String()).
		Int64("attempt", e.Attempt).Err("error", e.Err).Write().Message()
}

// ResumeSwitched is published when a recovery operator replaces a failed
// source with its fallback stream.
type ResumeSwitched struct {
	Ref xid.ID
	Err error
}

// Message implements the LogMessage interface.
func (e ResumeSwitched) Message() string {
	return LogMsg("stream switched to fallback").String("ref", e.Ref.String()).
		Err("error", e.Err).Write().Message()
}

// ResourceAcquired is published when a Using scope acquires its resource.
type ResourceAcquired struct {
	Ref xid.ID
}

// Message implements the LogMessage interface.
func (e ResourceAcquired) Message() string {
	return LogMsg("scoped resource acquired").String("ref", e.Ref.String()).Write().Message()
}

// ResourceDisposed is published once a Using scope has released its
// resource, with Err carrying a disposal failure if one occurred.
type ResourceDisposed struct {
	Ref xid.ID
	Err error
}

// Message implements the LogMessage interface.
func (e ResourceDisposed) Message() string {
	return LogMsg("scoped resource disposed").String("ref", e.Ref.String()).
		Err("error", e.Err).Write().Message()
}
