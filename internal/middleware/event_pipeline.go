package middleware

import (
	"context"
	"sync"
	"time"

	"CryptoDash/internal/domain/models"
	domrepo "CryptoDash/internal/domain/repository"
	applogger "CryptoDash/pkg/logger"
)

// EventPipeline sits between the dashboard and its sinks (event bus and
// candle archive). Callers enqueue without blocking; a single worker delivers
// in order, retrying with capped backoff and dropping when the buffer is full.
type EventPipeline struct {
	publisher   domrepo.EventPublisher
	archive     domrepo.CandleArchive
	metrics     domrepo.Metrics
	logger      *applogger.Logger
	bufSize     int
	maxAttempts int
	timeout     time.Duration
	bufCh       chan job
	stopCh      chan struct{}
	doneCh      chan struct{}
	started     bool
	mu          sync.Mutex
}

type job struct {
	event  *models.Event
	coinID string
	tf     domrepo.Timeframe
	series *models.OHLCVSeries
}

func (j job) kind() string {
	if j.event != nil {
		return "event"
	}
	return "archive"
}

type PipelineOption func(*EventPipeline)

// WithBufferSize sets how many jobs may wait for delivery.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts sets delivery attempts per job before it is dropped.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithDeliveryTimeout bounds one publish or archive call.
func WithDeliveryTimeout(d time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *EventPipeline) { p.logger = l }
}

// NewEventPipeline creates a pipeline. Nil sinks are skipped.
func NewEventPipeline(publisher domrepo.EventPublisher, archive domrepo.CandleArchive, metrics domrepo.Metrics, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		publisher:   publisher,
		archive:     archive,
		metrics:     metrics,
		logger:      applogger.Nop(),
		bufSize:     256,
		maxAttempts: 3,
		timeout:     5 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan job, p.bufSize)
	return p
}

// Start launches the delivery worker.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop delivers what is already queued, bounded by ctx, then stops the worker.
func (p *EventPipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	select {
	case <-p.doneCh:
	case <-ctx.Done():
	}
}

// PublishEvent queues evt. It reports false when the event was dropped.
func (p *EventPipeline) PublishEvent(evt models.Event) bool {
	if p.publisher == nil {
		return false
	}
	return p.enqueue(job{event: &evt})
}

// ArchiveSeries queues series for the candle archive.
func (p *EventPipeline) ArchiveSeries(coinID string, tf domrepo.Timeframe, series *models.OHLCVSeries) bool {
	if p.archive == nil || series == nil {
		return false
	}
	return p.enqueue(job{coinID: coinID, tf: tf, series: series})
}

func (p *EventPipeline) enqueue(j job) bool {
	select {
	case p.bufCh <- j:
		return true
	default:
		p.recordError("pipeline_buffer_full")
		p.logger.Warn("event pipeline buffer full", applogger.String("job", j.kind()))
		return false
	}
}

func (p *EventPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		case j := <-p.bufCh:
			p.deliver(ctx, j)
		}
	}
}

func (p *EventPipeline) drain(ctx context.Context) {
	for {
		select {
		case j := <-p.bufCh:
			p.deliverOnce(ctx, j)
		default:
			return
		}
	}
}

func (p *EventPipeline) deliver(ctx context.Context, j job) {
	backoff := 50 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := p.deliverOnce(ctx, j)
		if err == nil {
			return
		}
		if attempt >= p.maxAttempts {
			p.recordError("pipeline_drop")
			p.logger.Warn("event pipeline dropped job",
				applogger.String("job", j.kind()),
				applogger.Int("attempts", attempt),
				applogger.Error(err),
			)
			return
		}
		select {
		case <-time.After(backoff):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

func (p *EventPipeline) deliverOnce(ctx context.Context, j job) error {
	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	if j.event != nil {
		err = p.publisher.Publish(dctx, *j.event)
		if err == nil && p.metrics != nil {
			p.metrics.RecordPublished(j.event.Type)
		}
	} else {
		err = p.archive.StoreSeries(dctx, j.coinID, j.tf, j.series)
	}
	if err != nil {
		p.recordError("pipeline_" + j.kind())
		return err
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_"+j.kind(), time.Since(start).Seconds())
	}
	return nil
}

func (p *EventPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
