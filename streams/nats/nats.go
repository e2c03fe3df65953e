// Package nats exposes a NATS subject as a rxkit stream source. A NATS
// subject is a hot source: production happens whether or not anyone is
// subscribed, and every subscription performs real broker side effects,
// which is exactly the kind of source stream retrying exists for.
package nats

import (
	"github.com/gokit/errors"
	"github.com/gokit/xid"

	pubsub "github.com/nats-io/go-nats"

	"github.com/gokit/rxkit"
)

//*****************************************************************************
// Config
//*****************************************************************************

// Config provides configuration values for instantiating a Source.
type Config struct {
	URL     string
	Subject string
	Options []pubsub.Option
	Log     rxkit.Logs
}

func (c *Config) init() error {
	if c.URL == "" {
		return errors.New("nats: Config.URL is required")
	}
	if c.Subject == "" {
		return errors.New("nats: Config.Subject is required")
	}
	if c.Log == nil {
		c.Log = rxkit.DrainLog{}
	}
	return nil
}

//*****************************************************************************
// Message
//*****************************************************************************

// Message is the value type a Source emits for every delivery on its
// subject.
type Message struct {
	Subject string
	Reply   string
	Data    []byte
}

//*****************************************************************************
// Source
//*****************************************************************************

// Source implements the rxkit.ObservableSource interface over one NATS
// subject. Every Subscribe opens its own broker subscription; stopping
// the returned subscription unsubscribes from the broker.
type Source struct {
	id     xid.ID
	config Config
	conn   *pubsub.Conn
}

// NewSource connects to the configured NATS endpoint and returns a
// Source for the configured subject.
func NewSource(config Config) (*Source, error) {
	if err := config.init(); err != nil {
		return nil, err
	}

	conn, err := pubsub.Connect(config.URL, config.Options...)
	if err != nil {
		return nil, errors.Wrap(err, "nats: failed to connect to %q", config.URL)
	}

	return &Source{id: xid.New(), config: config, conn: conn}, nil
}

// Close closes the underline broker connection, failing every active
// and future subscription of the source.
func (s *Source) Close() error {
	s.conn.Close()
	return nil
}

// Subscribe implements the rxkit.ObservableSource interface.
func (s *Source) Subscribe(o rxkit.Observer) rxkit.Subscription {
	h := rxkit.NewHandle()
	out := rxkit.Guard(h, o)

	if s.conn.IsClosed() {
		out.Error(errors.New("nats: connection to %q is closed", s.config.URL))
		return h
	}

	s.config.Log.Emit(rxkit.DEBUG, rxkit.LogMsg("subscribing to nats subject").
		String("source", s.id.String()).String("subject", s.config.Subject).Write())

	sub, err := s.conn.Subscribe(s.config.Subject, func(msg *pubsub.Msg) {
		out.Next(Message{Subject: msg.Subject, Reply: msg.Reply, Data: msg.Data})
	})
	if err != nil {
		out.Error(errors.Wrap(err, "nats: failed to subscribe to subject %q", s.config.Subject))
		return h
	}

	h.Defer(func() {
		if err := sub.Unsubscribe(); err != nil {
			s.config.Log.Emit(rxkit.ERROR, rxkit.LogMsg("failed to unsubscribe from nats subject").
				String("subject", s.config.Subject).Err("error", err).Write())
		}
	})
	return h
}
