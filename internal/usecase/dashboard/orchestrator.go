// Package dashboard composes the feed poller, the view models and the scalper
// controller behind one state container: the current selection, the active
// tab and the decorative refresh countdown.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/usecase/feeds"
	"CryptoDash/internal/usecase/scalper"
	applogger "CryptoDash/pkg/logger"
)

// Sink receives feed and session events plus fresh series for archiving.
// Both calls must not block.
type Sink interface {
	PublishEvent(evt models.Event) bool
	ArchiveSeries(coinID string, tf repository.Timeframe, series *models.OHLCVSeries) bool
}

type Config struct {
	OHLCVInterval      time.Duration
	OverviewInterval   time.Duration
	PredictionInterval time.Duration
	CountdownSeconds   int
	Tick               time.Duration
	Default            Selection
	Sink               Sink
	Logger             *applogger.Logger
	Clock              func() time.Time
}

type Option func(*Config)

func WithIntervals(ohlcv, overview, prediction time.Duration) Option {
	return func(c *Config) {
		c.OHLCVInterval, c.OverviewInterval, c.PredictionInterval = ohlcv, overview, prediction
	}
}

// WithCountdown sets the countdown start value and how often it ticks.
func WithCountdown(seconds int, tick time.Duration) Option {
	return func(c *Config) { c.CountdownSeconds, c.Tick = seconds, tick }
}

func WithDefaultSelection(s Selection) Option {
	return func(c *Config) { c.Default = s }
}

func WithSink(s Sink) Option {
	return func(c *Config) { c.Sink = s }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Clock = now }
}

// Orchestrator owns the dashboard state. Views are always read through the
// feed keys of the current selection, so a response for an instrument the
// operator has left lands in the cache but never in the view.
type Orchestrator struct {
	cfg         Config
	poller      *feeds.Poller
	market      repository.MarketData
	predictions repository.PredictionSource
	scalper     *scalper.Controller

	mu        sync.Mutex
	sel       Selection
	tab       Tab
	countdown int
	keys      map[feeds.Kind]feeds.Key
	handles   map[feeds.Kind]feeds.Handle
	meta      map[feeds.Key]Selection
	lastState models.SessionState
	listeners map[int]func()
	nextID    int
	started   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(poller *feeds.Poller, market repository.MarketData, predictions repository.PredictionSource, ctrl *scalper.Controller, opts ...Option) (*Orchestrator, error) {
	cfg := Config{
		OHLCVInterval:      time.Minute,
		OverviewInterval:   time.Minute,
		PredictionInterval: time.Minute,
		CountdownSeconds:   60,
		Tick:               time.Second,
		Default:            Selection{CoinID: "bitcoin", Days: int(repository.DefaultTimeframe())},
		Logger:             applogger.Nop(),
		Clock:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Default = Selection{}.merge(cfg.Default.CoinID, cfg.Default.Days)
	if err := cfg.Default.Validate(); err != nil {
		return nil, fmt.Errorf("default selection: %w", err)
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 60
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}

	o := &Orchestrator{
		cfg:         cfg,
		poller:      poller,
		market:      market,
		predictions: predictions,
		scalper:     ctrl,
		sel:         cfg.Default,
		tab:         TabSignals,
		countdown:   cfg.CountdownSeconds,
		keys:        make(map[feeds.Kind]feeds.Key),
		handles:     make(map[feeds.Kind]feeds.Handle),
		meta:        make(map[feeds.Key]Selection),
		lastState:   ctrl.Snapshot().State,
		listeners:   make(map[int]func()),
	}
	poller.Observe(o.onFeed)
	ctrl.Observe(o.onScalper)
	return o, nil
}

// Start subscribes the feeds for the current selection and starts the
// countdown. Calling it twice is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	ctx, o.cancel = context.WithCancel(ctx)
	o.resubscribeLocked(o.sel)
	sel := o.sel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.tick(ctx)

	o.cfg.Logger.Info("dashboard started", applogger.String("selection", sel.String()))
}

// Close unsubscribes every feed and stops the countdown. The scalper session
// is left to its owner.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	for kind, h := range o.handles {
		o.poller.Unsubscribe(h)
		delete(o.handles, kind)
	}
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

// Select changes the instrument and/or window. An empty coinID or zero days
// keeps the current value. Only feeds whose key changes are resubscribed, and
// the countdown restarts only when the instrument changes.
func (o *Orchestrator) Select(coinID string, days int) (Selection, error) {
	o.mu.Lock()
	next := o.sel.merge(coinID, days)
	if err := next.Validate(); err != nil {
		o.mu.Unlock()
		return Selection{}, err
	}
	prev := o.sel
	if next == prev {
		o.mu.Unlock()
		return next, nil
	}

	o.sel = next
	if next.CoinID != prev.CoinID {
		o.countdown = o.cfg.CountdownSeconds
	}
	if o.started {
		o.resubscribeLocked(next)
	}
	o.mu.Unlock()

	o.cfg.Logger.Info("selection changed",
		applogger.String("from", prev.String()),
		applogger.String("to", next.String()),
	)
	o.changed()
	return next, nil
}

// SetTab switches the active panel.
func (o *Orchestrator) SetTab(t Tab) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown tab %q", models.ErrInvalidSelection, t)
	}
	o.mu.Lock()
	same := o.tab == t
	o.tab = t
	o.mu.Unlock()

	if !same {
		o.changed()
	}
	return nil
}

func (o *Orchestrator) Selection() Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sel
}

// Dashboard assembles the view for the current selection.
func (o *Orchestrator) Dashboard() View {
	o.mu.Lock()
	sel, tab, countdown := o.sel, o.tab, o.countdown
	o.mu.Unlock()

	ohlcv, _ := o.poller.Get(o.sourceFor(feeds.KindOHLCV, sel).Key())
	overview, _ := o.poller.Get(o.sourceFor(feeds.KindOverview, sel).Key())
	prediction, _ := o.poller.Get(o.sourceFor(feeds.KindPrediction, sel).Key())

	return View{
		Selection:  sel,
		Timeframe:  sel.Timeframe().Label(),
		Tab:        tab,
		Countdown:  countdown,
		Overview:   overviewView(overview),
		Series:     seriesView(ohlcv),
		Prediction: predictionView(prediction),
		Scalper:    ScalperViewOf(o.scalper.Snapshot()),
	}
}

// Chart projects the current selection's series into layout.
func (o *Orchestrator) Chart(layout ChartLayout) (Chart, FeedState) {
	sel := o.Selection()
	e, _ := o.poller.Get(o.sourceFor(feeds.KindOHLCV, sel).Key())
	series, _ := feeds.Value[*models.OHLCVSeries](e)
	return BuildChart(series, layout), feedState(e)
}

// OnChange registers fn to run after any change visible in the dashboard.
// fn runs on the goroutine that made the change and must not block.
func (o *Orchestrator) OnChange(fn func()) (cancel func()) {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.listeners[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// Scalper exposes the session controller.
func (o *Orchestrator) Scalper() *scalper.Controller { return o.scalper }

func (o *Orchestrator) sourceFor(kind feeds.Kind, sel Selection) feeds.Source {
	coin, tf := sel.CoinID, sel.Timeframe()
	switch kind {
	case feeds.KindOHLCV:
		return feeds.NewSource(kind, ohlcvParams(sel), func(ctx context.Context) (*models.OHLCVSeries, error) {
			return o.market.FetchOHLCV(ctx, coin, tf)
		})
	case feeds.KindOverview:
		return feeds.NewSource(kind, coin, func(ctx context.Context) (*models.MarketOverview, error) {
			return o.market.FetchOverview(ctx, coin)
		})
	default:
		return feeds.NewSource(feeds.KindPrediction, coin, func(ctx context.Context) (*models.Prediction, error) {
			return o.predictions.FetchPrediction(ctx, coin)
		})
	}
}

func (o *Orchestrator) intervalFor(kind feeds.Kind) time.Duration {
	switch kind {
	case feeds.KindOHLCV:
		return o.cfg.OHLCVInterval
	case feeds.KindOverview:
		return o.cfg.OverviewInterval
	default:
		return o.cfg.PredictionInterval
	}
}

// resubscribeLocked moves each feed whose key differs under sel onto the new
// key. The old slot stays cached so switching back renders at once.
func (o *Orchestrator) resubscribeLocked(sel Selection) {
	for _, kind := range []feeds.Kind{feeds.KindOHLCV, feeds.KindOverview, feeds.KindPrediction} {
		src := o.sourceFor(kind, sel)
		key := src.Key()
		if h, ok := o.handles[kind]; ok {
			if o.keys[kind] == key {
				continue
			}
			o.poller.Unsubscribe(h)
		}
		o.keys[kind] = key
		o.meta[key] = sel
		o.handles[kind] = o.poller.Subscribe(src, o.intervalFor(kind))
	}
}

func (o *Orchestrator) onFeed(e feeds.Entry) {
	o.mu.Lock()
	current := o.keys[e.Key.Kind] == e.Key
	sel, known := o.meta[e.Key]
	o.mu.Unlock()

	switch e.Status {
	case feeds.StatusFresh:
		o.emit(models.EventFeedRefreshed, "feed:"+e.Key.String(), models.FeedEventPayload{
			Kind:      string(e.Key.Kind),
			Params:    e.Key.Params,
			FetchedAt: e.FetchedAt,
		})
		if series, ok := feeds.Value[*models.OHLCVSeries](e); ok && known && o.cfg.Sink != nil {
			o.cfg.Sink.ArchiveSeries(sel.CoinID, sel.Timeframe(), series)
		}
	case feeds.StatusError:
		payload := models.FeedEventPayload{Kind: string(e.Key.Kind), Params: e.Key.Params}
		if e.Err != nil {
			payload.Error = e.Err.Error()
		}
		o.emit(models.EventFeedFailed, "feed:"+e.Key.String(), payload)
	}

	if current {
		o.changed()
	}
}

func (o *Orchestrator) onScalper(s scalper.Snapshot) {
	o.mu.Lock()
	transitioned := s.State != o.lastState
	o.lastState = s.State
	o.mu.Unlock()

	if transitioned {
		o.emit(models.EventScalperState, "scalper", models.ScalperEventPayload{
			State:  s.State.String(),
			Symbol: s.Symbol,
			Reason: s.Reason,
		})
	}
	o.changed()
}

func (o *Orchestrator) emit(typ, key string, payload any) {
	if o.cfg.Sink == nil {
		return
	}
	o.cfg.Sink.PublishEvent(models.Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Key:     key,
		Time:    o.cfg.Clock().UTC(),
		Payload: payload,
	})
}

func (o *Orchestrator) tick(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			o.countdown = nextCountdown(o.countdown, o.cfg.CountdownSeconds)
			o.mu.Unlock()
			o.changed()
		}
	}
}

// nextCountdown wraps back to reset after reaching one.
func nextCountdown(prev, reset int) int {
	if prev <= 1 {
		return reset
	}
	return prev - 1
}

func (o *Orchestrator) changed() {
	o.mu.Lock()
	fns := make([]func(), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
