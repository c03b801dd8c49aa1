package venue

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// KafkaConfig points the order publisher at a broker topic.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batchTimeout"`
}

func (c KafkaConfig) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka venue: no brokers")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return errors.New("kafka venue: empty broker address")
		}
	}
	if c.Topic == "" {
		return errors.New("kafka venue: empty topic")
	}
	return nil
}

// Kafka publishes intents to a topic keyed by instrument, so that each
// instrument's orders keep their order on one partition. Writes are async.
type Kafka struct {
	writer *kafka.Writer
	closed atomic.Bool
	failed atomic.Uint64
}

// NewKafka creates an async publisher. It does not dial until the first write.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Millisecond
	}

	k := &Kafka{}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				k.failed.Add(uint64(len(messages)))
				logs.Errorf("kafka venue: publish %d intents, err: %+v", len(messages), err)
			}
		},
	}
	return k, nil
}

func (k *Kafka) PlaceOrder(intent schema.OrderIntent) error {
	if k.closed.Load() {
		return exception.ErrOrderVenueClosed
	}
	if err := validate(intent); err != nil {
		return err
	}
	msg, err := intentMessage(intent)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(context.Background(), msg); err != nil {
		return errors.Wrap(err, "write intent")
	}
	return nil
}

// Failed returns the number of intents the broker did not accept.
func (k *Kafka) Failed() uint64 {
	return k.failed.Load()
}

// Close flushes buffered intents and closes the writer.
func (k *Kafka) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}
	return k.writer.Close()
}

func intentMessage(intent schema.OrderIntent) (kafka.Message, error) {
	payload, err := sonic.Marshal(intent)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal intent")
	}
	return kafka.Message{
		Key:   []byte(intent.Instrument),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(schema.EventOrderIntent.String())},
		},
	}, nil
}
