// Package kafka exposes a Kafka topic as a rxkit stream source, with a
// Managed variant tying the reader's lifetime to the subscription
// through rxkit.Using.
package kafka

import (
	"context"

	"github.com/gokit/errors"
	"github.com/gokit/xid"

	consumer "github.com/segmentio/kafka-go"

	"github.com/gokit/rxkit"
)

//*****************************************************************************
// Config
//*****************************************************************************

// Config provides configuration values for instantiating a Source.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	Log      rxkit.Logs
}

func (c *Config) init() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: Config.Brokers is required")
	}
	if c.Topic == "" {
		return errors.New("kafka: Config.Topic is required")
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.Log == nil {
		c.Log = rxkit.DrainLog{}
	}
	return nil
}

func (c *Config) reader() *consumer.Reader {
	return consumer.NewReader(consumer.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    c.Topic,
		GroupID:  c.GroupID,
		MinBytes: c.MinBytes,
		MaxBytes: c.MaxBytes,
	})
}

//*****************************************************************************
// Message
//*****************************************************************************

// Message is the value type a Source emits for every record read from
// its topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

//*****************************************************************************
// Source
//*****************************************************************************

// Source implements the rxkit.ObservableSource interface over one Kafka
// topic. Every Subscribe opens its own reader and consumes from the
// configured group; a read failure terminates the stream with an error,
// leaving resubscription to whatever retry operator wraps the source.
type Source struct {
	id     xid.ID
	config Config
}

// NewSource returns a Source for the configured topic.
func NewSource(config Config) (*Source, error) {
	if err := config.init(); err != nil {
		return nil, err
	}
	return &Source{id: xid.New(), config: config}, nil
}

// Subscribe implements the rxkit.ObservableSource interface.
func (s *Source) Subscribe(o rxkit.Observer) rxkit.Subscription {
	h := rxkit.NewHandle()
	out := rxkit.Guard(h, o)

	s.config.Log.Emit(rxkit.DEBUG, rxkit.LogMsg("consuming kafka topic").
		String("source", s.id.String()).String("topic", s.config.Topic).Write())

	reader := s.config.reader()
	ctx, cancel := context.WithCancel(context.Background())
	h.Defer(func() {
		cancel()
		if err := reader.Close(); err != nil {
			s.config.Log.Emit(rxkit.ERROR, rxkit.LogMsg("failed to close kafka reader").
				String("topic", s.config.Topic).Err("error", err).Write())
		}
	})

	go consume(ctx, reader, out, s.config.Topic)
	return h
}

func consume(ctx context.Context, reader *consumer.Reader, out rxkit.Observer, topic string) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			out.Error(errors.Wrap(err, "kafka: failed reading from topic %q", topic))
			return
		}
		out.Next(Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
		})
	}
}

//*****************************************************************************
// Managed
//*****************************************************************************

// Managed returns an Observable whose reader is acquired and released
// per subscription through rxkit.Using, guaranteeing the reader closes
// exactly once whether the stream fails, the consumer cancels, or the
// broker goes away.
func Managed(config Config, ops ...rxkit.Option) (rxkit.Observable, error) {
	if err := config.init(); err != nil {
		return rxkit.Observable{}, err
	}

	factory := func() (interface{}, error) {
		return config.reader(), nil
	}
	build := func(r interface{}) (rxkit.ObservableSource, error) {
		reader := r.(*consumer.Reader)
		return rxkit.SourceFunc(func(o rxkit.Observer) rxkit.Subscription {
			h := rxkit.NewHandle()
			out := rxkit.Guard(h, o)
			ctx, cancel := context.WithCancel(context.Background())
			h.Defer(cancel)
			go consume(ctx, reader, out, config.Topic)
			return h
		}), nil
	}
	dispose := func(r interface{}) error {
		if err := r.(*consumer.Reader).Close(); err != nil {
			return errors.Wrap(err, "kafka: failed to close reader for topic %q", config.Topic)
		}
		return nil
	}

	return rxkit.Using(factory, build, dispose, ops...), nil
}
