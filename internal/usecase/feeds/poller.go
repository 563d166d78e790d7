// Package feeds keeps a keyed cache of backend payloads refreshed on fixed
// intervals. Each subscription owns a timer; a slot is fetched by at most one
// request at a time and a completing request always lands on the key it was
// issued for, whether or not anyone still subscribes to that key.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	applogger "CryptoDash/pkg/logger"
)

// Handle identifies a subscription.
type Handle uint64

type subscription struct {
	src      Source
	interval time.Duration
	cancel   context.CancelFunc
}

type PollerConfig struct {
	FetchTimeout time.Duration
	SnapshotTTL  time.Duration
	Store        repository.SnapshotStore
	Metrics      repository.Metrics
	Logger       *applogger.Logger
	Clock        func() time.Time
}

type PollerOption func(*PollerConfig)

func WithFetchTimeout(d time.Duration) PollerOption {
	return func(c *PollerConfig) { c.FetchTimeout = d }
}

// WithSnapshotStore persists each successful payload and seeds empty slots
// from it on first subscription.
func WithSnapshotStore(s repository.SnapshotStore, ttl time.Duration) PollerOption {
	return func(c *PollerConfig) { c.Store, c.SnapshotTTL = s, ttl }
}

func WithMetrics(m repository.Metrics) PollerOption {
	return func(c *PollerConfig) { c.Metrics = m }
}

func WithLogger(l *applogger.Logger) PollerOption {
	return func(c *PollerConfig) { c.Logger = l }
}

func WithClock(now func() time.Time) PollerOption {
	return func(c *PollerConfig) { c.Clock = now }
}

// Poller is the feed cache plus its refresh loops.
type Poller struct {
	cfg PollerConfig

	mu        sync.Mutex
	slots     map[Key]*slot
	subs      map[Handle]*subscription
	next      Handle
	observers []func(Entry)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(opts ...PollerOption) *Poller {
	cfg := PollerConfig{
		FetchTimeout: 20 * time.Second,
		SnapshotTTL:  24 * time.Hour,
		Logger:       applogger.Nop(),
		Clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		cfg:    cfg,
		slots:  make(map[Key]*slot),
		subs:   make(map[Handle]*subscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Observe registers fn to receive every slot change. fn runs on the fetching
// goroutine and must not block for long.
func (p *Poller) Observe(fn func(Entry)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// Subscribe starts refreshing src every interval. The first fetch happens
// immediately unless the slot is still fresh, in which case it waits for the
// remainder of the freshness window.
func (p *Poller) Subscribe(src Source, interval time.Duration) Handle {
	if interval <= 0 {
		interval = time.Minute
	}
	key := src.Key()

	p.mu.Lock()
	s, ok := p.slots[key]
	if !ok {
		s = &slot{}
		p.slots[key] = s
	}
	s.interval = interval

	p.next++
	h := p.next
	ctx, cancel := context.WithCancel(p.ctx)
	p.subs[h] = &subscription{src: src, interval: interval, cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, src, interval)

	p.cfg.Logger.Debug("feed subscribed", applogger.String("feed", key.String()), applogger.Duration("interval_ms", interval))
	return h
}

// Unsubscribe stops the refresh timer for h. A fetch already in flight is
// allowed to finish and still updates the cache. The slot itself is kept.
func (p *Poller) Unsubscribe(h Handle) {
	p.mu.Lock()
	sub, ok := p.subs[h]
	delete(p.subs, h)
	p.mu.Unlock()

	if ok {
		sub.cancel()
		p.cfg.Logger.Debug("feed unsubscribed", applogger.String("feed", sub.src.Key().String()))
	}
}

// Get returns the current entry for key.
func (p *Poller) Get(key Key) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.slots[key]
	if !ok {
		return Entry{Key: key, Status: StatusIdle}, false
	}
	return s.view(key, p.cfg.Clock()), true
}

// Refresh fetches src now unless a fetch for its key is already in flight.
// It returns false when the request was coalesced into the in-flight one.
func (p *Poller) Refresh(src Source) bool {
	key := src.Key()

	p.mu.Lock()
	s, ok := p.slots[key]
	if !ok {
		s = &slot{}
		p.slots[key] = s
	}
	if s.inFlight {
		p.mu.Unlock()
		return false
	}
	s.inFlight = true
	s.status = StatusFetching
	started := p.cfg.Clock()
	fetching := s.view(key, started)
	p.mu.Unlock()
	p.notify(fetching)

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.FetchTimeout)
	value, err := src.Fetch(ctx)
	cancel()

	now := p.cfg.Clock()
	p.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.status = StatusError
		s.err = fmt.Errorf("%w: %s: %w", models.ErrFeedFetch, key, err)
	} else {
		s.value = value
		s.fetchedAt = now
		s.status = StatusFresh
		s.err = nil
	}
	entry := s.view(key, now)
	p.mu.Unlock()

	took := now.Sub(started)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordFeedFetch(string(key.Kind), err == nil, took.Seconds())
	}
	if err != nil {
		p.cfg.Logger.Warn("feed fetch failed",
			applogger.String("feed", key.String()),
			applogger.Bool("has_value", entry.HasValue()),
			applogger.Error(err),
		)
	} else {
		p.cfg.Logger.Debug("feed refreshed", applogger.String("feed", key.String()), applogger.Duration("took_ms", took))
		p.saveSnapshot(key, value, now)
	}

	p.notify(entry)
	return true
}

// Close stops every loop and waits for them to exit.
func (p *Poller) Close() {
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.subs = make(map[Handle]*subscription)
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, src Source, interval time.Duration) {
	defer p.wg.Done()

	p.restore(ctx, src)

	p.mu.Lock()
	delay := p.slots[src.Key()].freshFor(p.cfg.Clock())
	p.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.Refresh(src)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(interval)
		}
	}
}

func (p *Poller) notify(e Entry) {
	p.mu.Lock()
	observers := append([]func(Entry){}, p.observers...)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(e)
	}
}

type snapshot struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Value     json.RawMessage `json:"value"`
}

func snapshotKey(k Key) string { return "feed:" + k.String() }

func (p *Poller) saveSnapshot(key Key, value any, at time.Time) {
	if p.cfg.Store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		p.cfg.Logger.Warn("feed snapshot encode failed", applogger.String("feed", key.String()), applogger.Error(err))
		return
	}
	data, _ := json.Marshal(snapshot{FetchedAt: at, Value: raw})

	ctx, cancel := context.WithTimeout(p.ctx, 2*time.Second)
	defer cancel()
	if err := p.cfg.Store.Save(ctx, snapshotKey(key), data, p.cfg.SnapshotTTL); err != nil {
		p.cfg.Logger.Warn("feed snapshot save failed", applogger.String("feed", key.String()), applogger.Error(err))
	}
}

// restore seeds a never-fetched slot from the snapshot store. Restored data is
// always reported Stale so it is refetched straight away.
func (p *Poller) restore(ctx context.Context, src Source) {
	if p.cfg.Store == nil {
		return
	}
	key := src.Key()

	p.mu.Lock()
	s := p.slots[key]
	skip := s.restored || s.value != nil || s.inFlight
	s.restored = true
	p.mu.Unlock()
	if skip {
		return
	}

	lctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	data, ok, err := p.cfg.Store.Load(lctx, snapshotKey(key))
	cancel()
	if err != nil {
		p.cfg.Logger.Warn("feed snapshot load failed", applogger.String("feed", key.String()), applogger.Error(err))
		return
	}
	if !ok {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.cfg.Logger.Warn("feed snapshot corrupt", applogger.String("feed", key.String()), applogger.Error(err))
		return
	}
	value, err := src.Decode(snap.Value)
	if err != nil {
		p.cfg.Logger.Warn("feed snapshot corrupt", applogger.String("feed", key.String()), applogger.Error(err))
		return
	}

	p.mu.Lock()
	if s.value != nil || s.inFlight {
		p.mu.Unlock()
		return
	}
	s.value = value
	s.fetchedAt = snap.FetchedAt
	s.status = StatusStale
	entry := s.view(key, p.cfg.Clock())
	p.mu.Unlock()

	p.cfg.Logger.Info("feed restored from snapshot", applogger.String("feed", key.String()), applogger.Any("fetched_at", snap.FetchedAt))
	p.notify(entry)
}
