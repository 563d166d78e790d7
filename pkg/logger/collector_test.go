package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLogCollectorFoldsDuplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
	})

	fields := map[string]interface{}{"feed": "ohlcv:bitcoin:30"}
	c.AddLog("warn", "feed fetch failed", fields, "feeds/poller.go:10")
	c.AddLog("warn", "feed fetch failed", fields, "feeds/poller.go:10")
	c.AddLog("error", "scalper stop failed", nil, "scalper/controller.go:20")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)

	batch := pub.batches[0]
	require.Len(t, batch, 2)
	counts := map[string]int{}
	for _, e := range batch {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, 2, counts["feed fetch failed"])
	assert.Equal(t, 1, counts["scalper stop failed"])
}

func TestLogCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("warn", "a", nil, "x:1")
	c.AddLog("warn", "b", nil, "x:2")

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.batches) == 1
	}, time.Second, 10*time.Millisecond)
}
