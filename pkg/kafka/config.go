package kafka

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// ProducerConfig collects everything NewProducer needs to build a writer.
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	BatchSize    int
	BatchBytes   int
	Linger       time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Async        bool
	KeyedOrder   bool
	Registerer   prometheus.Registerer
	Writer       MessageWriter
}

// ProducerOption mutates a ProducerConfig.
type ProducerOption func(*ProducerConfig)

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		Linger:       time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		KeyedOrder:   true,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithDelivery sets the acknowledgement level (-1 waits for all replicas) and
// how many times the writer retries a failed batch.
func WithDelivery(acks, attempts int) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		if attempts > 0 {
			c.MaxAttempts = attempts
		}
	}
}

// WithCompression accepts gzip, snappy, lz4 or zstd. Anything else falls back to gzip.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithBatching flushes a batch once it holds size messages or bytes bytes, or
// after linger has passed.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchSize = size
		c.BatchBytes = bytes
		c.Linger = linger
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes WriteMessages return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithKeyedOrder routes messages sharing a key to one partition.
func WithKeyedOrder(keyed bool) ProducerOption {
	return func(c *ProducerConfig) { c.KeyedOrder = keyed }
}

// WithRegisterer enables producer metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ProducerOption {
	return func(c *ProducerConfig) { c.Registerer = reg }
}

// WithWriter bypasses broker dialing, mainly for tests.
func WithWriter(w MessageWriter) ProducerOption {
	return func(c *ProducerConfig) { c.Writer = w }
}

func (c *ProducerConfig) writer() (MessageWriter, error) {
	if c.Writer != nil {
		return c.Writer, nil
	}
	if len(c.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if c.KeyedOrder {
		balancer = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               balancer,
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            compressionCodec(c.Compression),
		MaxAttempts:            c.MaxAttempts,
		BatchSize:              c.BatchSize,
		BatchBytes:             int64(c.BatchBytes),
		BatchTimeout:           c.Linger,
		WriteTimeout:           c.WriteTimeout,
		ReadTimeout:            c.ReadTimeout,
		Async:                  c.Async,
		AllowAutoTopicCreation: true,
	}, nil
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
