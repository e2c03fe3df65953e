package rxkit

import (
	"strconv"
	"time"
)

//***************************************************************************
// LogEvent
//***************************************************************************

// LogMsg returns a new *LogEvent seeded with giving message. Field
// methods may be chained onto it, with Write sealing the event for
// delivery to a Logs implementation.
func LogMsg(message string) *LogEvent {
	ev := &LogEvent{content: make([]byte, 0, 218)}
	return ev.addQuoted("message", message)
}

// LogEvent implements a small structured log builder rendering its
// key-value pairs into a non-strict json object. A sealed event must not
// be written to further.
type LogEvent struct {
	sealed  bool
	content []byte
}

// String adds a quoted string field into the event.
func (l *LogEvent) String(key string, value string) *LogEvent {
	return l.addQuoted(key, value)
}

// Int adds an integer field into the event.
func (l *LogEvent) Int(key string, value int) *LogEvent {
	return l.addRaw(key, strconv.Itoa(value))
}

// Int64 adds a 64-bit integer field into the event.
func (l *LogEvent) Int64(key string, value int64) *LogEvent {
	return l.addRaw(key, strconv.FormatInt(value, 10))
}

// Bool adds a boolean field into the event.
func (l *LogEvent) Bool(key string, value bool) *LogEvent {
	return l.addRaw(key, strconv.FormatBool(value))
}

// Dur adds a duration field into the event in string form.
func (l *LogEvent) Dur(key string, value time.Duration) *LogEvent {
	return l.addQuoted(key, value.String())
}

// Err adds an error field into the event, rendering a nil error as an
// empty string.
func (l *LogEvent) Err(key string, value error) *LogEvent {
	if value == nil {
		return l.addQuoted(key, "")
	}
	return l.addQuoted(key, value.Error())
}

// Write seals giving event against further field writes and returns it
// for use as a LogMessage.
func (l *LogEvent) Write() *LogEvent {
	l.sealed = true
	return l
}

// Message implements the LogMessage interface.
func (l *LogEvent) Message() string {
	return "{" + string(l.content) + "}"
}

func (l *LogEvent) addQuoted(key string, value string) *LogEvent {
	return l.addRaw(key, strconv.Quote(value))
}

func (l *LogEvent) addRaw(key string, value string) *LogEvent {
	if l.sealed {
		panic("rxkit: write into sealed LogEvent")
	}
	if len(l.content) != 0 {
		l.content = append(l.content, ',', ' ')
	}
	l.content = append(l.content, strconv.Quote(key)...)
	l.content = append(l.content, ':', ' ')
	l.content = append(l.content, value...)
	return l
}
