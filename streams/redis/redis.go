// Package redis exposes a Redis pub/sub channel as a rxkit stream
// source. Like all broker bridges this is a hot source: each
// subscription performs real broker side effects and missed publishes
// are gone, so composing it under Retry or RetryWhen is the intended
// use.
package redis

import (
	pubsub "github.com/go-redis/redis"

	"github.com/gokit/errors"
	"github.com/gokit/xid"

	"github.com/gokit/rxkit"
)

//*****************************************************************************
// Config
//*****************************************************************************

// Config provides configuration values for instantiating a Source.
type Config struct {
	Channel string
	Options *pubsub.Options
	Log     rxkit.Logs
}

func (c *Config) init() error {
	if c.Channel == "" {
		return errors.New("redis: Config.Channel is required")
	}
	if c.Options == nil {
		return errors.New("redis: Config.Options is required")
	}
	if c.Log == nil {
		c.Log = rxkit.DrainLog{}
	}
	return nil
}

//*****************************************************************************
// Message
//*****************************************************************************

// Message is the value type a Source emits for every publish on its
// channel.
type Message struct {
	Channel string
	Pattern string
	Payload string
}

//*****************************************************************************
// Source
//*****************************************************************************

// Source implements the rxkit.ObservableSource interface over one Redis
// pub/sub channel. Every Subscribe opens its own pub/sub connection;
// stopping the returned subscription closes it. The pub/sub connection
// dropping terminates the stream with an error, handing the decision of
// what happens next to whatever retry operator wraps the source.
type Source struct {
	id     xid.ID
	config Config
	client *pubsub.Client
}

// NewSource connects to the configured Redis endpoint and returns a
// Source for the configured channel.
func NewSource(config Config) (*Source, error) {
	if err := config.init(); err != nil {
		return nil, err
	}

	client := pubsub.NewClient(config.Options)
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "redis: failed to reach %q", config.Options.Addr)
	}

	return &Source{id: xid.New(), config: config, client: client}, nil
}

// Close closes the underline client, failing every future subscription
// of the source.
func (s *Source) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.Wrap(err, "redis: failed to close client")
	}
	return nil
}

// Subscribe implements the rxkit.ObservableSource interface.
func (s *Source) Subscribe(o rxkit.Observer) rxkit.Subscription {
	h := rxkit.NewHandle()
	out := rxkit.Guard(h, o)

	s.config.Log.Emit(rxkit.DEBUG, rxkit.LogMsg("subscribing to redis channel").
		String("source", s.id.String()).String("channel", s.config.Channel).Write())

	sub := s.client.Subscribe(s.config.Channel)
	h.Defer(func() {
		if err := sub.Close(); err != nil {
			s.config.Log.Emit(rxkit.ERROR, rxkit.LogMsg("failed to close redis subscription").
				String("channel", s.config.Channel).Err("error", err).Write())
		}
	})

	go func() {
		in := sub.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					out.Error(errors.New("redis: subscription to %q closed", s.config.Channel))
					return
				}
				out.Next(Message{Channel: msg.Channel, Pattern: msg.Pattern, Payload: msg.Payload})
			case <-h.Done():
				return
			}
		}
	}()
	return h
}
