package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestProducer_PublishEncodesValues(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, "events", []byte("bitcoin"), map[string]int{"days": 30}))
	require.NoError(t, p.PublishMessage(ctx, "logs", "raw"))
	require.NoError(t, p.PublishBatch(ctx, "events", []Message{
		{Key: []byte("a"), Value: []byte(`{"x":1}`), Headers: map[string]string{"type": "feed.refreshed"}},
	}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "events", w.msgs[0].Topic)
	assert.Equal(t, "bitcoin", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"days":30}`, string(w.msgs[0].Value))
	assert.Nil(t, w.msgs[1].Key)
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	require.Len(t, w.msgs[2].Headers, 1)
	assert.Equal(t, "type", w.msgs[2].Headers[0].Key)
	assert.Equal(t, "feed.refreshed", string(w.msgs[2].Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_RejectsEmptyTopicAndBadValues(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w))
	require.NoError(t, err)

	assert.Error(t, p.Publish(context.Background(), "", nil, "x"))
	assert.Error(t, p.Publish(context.Background(), "t", nil, make(chan int)))
	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Empty(t, w.msgs)
}

func TestProducer_MetricsOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{err: errors.New("broker down")}
	p, err := NewProducer(WithWriter(w), WithRegisterer(reg), WithCompression("snappy"))
	require.NoError(t, err)

	err = p.Publish(context.Background(), "events", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("events", "snappy", "error")))
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Snappy, compressionCodec("snappy"))
	assert.Equal(t, kafka.Zstd, compressionCodec("zstd"))
	assert.Equal(t, kafka.Gzip, compressionCodec("unknown"))
}

func TestProducerConfig_BuildsWriter(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"k1:9092"}),
		WithDelivery(1, 0),
		WithBatching(10, 4096, 20*time.Millisecond),
		WithKeyedOrder(false),
	} {
		opt(cfg)
	}

	mw, err := cfg.writer()
	require.NoError(t, err)
	w, ok := mw.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, int64(4096), w.BatchBytes)
	assert.Equal(t, 20*time.Millisecond, w.BatchTimeout)
	assert.IsType(t, &kafka.LeastBytes{}, w.Balancer)
}
