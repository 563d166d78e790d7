package testutils

import (
	"context"
	"sync"
	"time"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
)

// MockSnapshotStore is an in-memory SnapshotStore.
type MockSnapshotStore struct {
	Data map[string][]byte
	Mu   sync.Mutex
}

func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{Data: make(map[string][]byte)}
}

func (m *MockSnapshotStore) Save(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockSnapshotStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	v, ok := m.Data[key]
	return v, ok, nil
}

func (m *MockSnapshotStore) Close() error { return nil }

func (m *MockSnapshotStore) Keys() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	keys := make([]string, 0, len(m.Data))
	for k := range m.Data {
		keys = append(keys, k)
	}
	return keys
}

// MockMarket serves MarketData and PredictionSource from overridable funcs.
// Unset funcs return a small deterministic payload for the coin.
type MockMarket struct {
	OHLCVFunc      func(ctx context.Context, coinID string, tf repository.Timeframe) (*models.OHLCVSeries, error)
	OverviewFunc   func(ctx context.Context, coinID string) (*models.MarketOverview, error)
	PredictionFunc func(ctx context.Context, coinID string) (*models.Prediction, error)

	Mu    sync.Mutex
	Calls []string
}

func (m *MockMarket) record(call string) {
	m.Mu.Lock()
	m.Calls = append(m.Calls, call)
	m.Mu.Unlock()
}

// CallCount counts recorded calls equal to call, e.g. "overview:bitcoin".
func (m *MockMarket) CallCount(call string) int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockMarket) FetchOHLCV(ctx context.Context, coinID string, tf repository.Timeframe) (*models.OHLCVSeries, error) {
	m.record("ohlcv:" + coinID + ":" + tf.Label())
	if m.OHLCVFunc != nil {
		return m.OHLCVFunc(ctx, coinID, tf)
	}
	return SampleSeries(coinID, 3), nil
}

func (m *MockMarket) FetchOverview(ctx context.Context, coinID string) (*models.MarketOverview, error) {
	m.record("overview:" + coinID)
	if m.OverviewFunc != nil {
		return m.OverviewFunc(ctx, coinID)
	}
	return &models.MarketOverview{Name: coinID, Symbol: coinID, CurrentPrice: 100}, nil
}

func (m *MockMarket) FetchPrediction(ctx context.Context, coinID string) (*models.Prediction, error) {
	m.record("prediction:" + coinID)
	if m.PredictionFunc != nil {
		return m.PredictionFunc(ctx, coinID)
	}
	return &models.Prediction{OverallSignal: models.SignalBuy, Confidence: 60, Summary: coinID}, nil
}

// SampleSeries builds n ascending daily bars.
func SampleSeries(symbol string, n int) *models.OHLCVSeries {
	s := &models.OHLCVSeries{Symbol: symbol}
	for i := 0; i < n; i++ {
		base := 100 + float64(i)
		s.Prices = append(s.Prices, models.PricePoint{
			Time:   int64(i+1) * 86_400_000,
			Open:   base,
			High:   base + 2,
			Low:    base - 2,
			Close:  base + 1,
			Volume: 1000 + float64(i),
		})
	}
	return s
}

// MockTrading is a scripted TradingService.
type MockTrading struct {
	StartFunc  func(ctx context.Context, creds models.Credentials) (*models.ScalperStatus, error)
	StopFunc   func(ctx context.Context) error
	StatusFunc func(ctx context.Context) (*models.ScalperStatus, error)

	Mu          sync.Mutex
	StartCalls  int
	StopCalls   int
	StatusCalls int
	LastCreds   models.Credentials
}

func (m *MockTrading) StartScalper(ctx context.Context, creds models.Credentials) (*models.ScalperStatus, error) {
	m.Mu.Lock()
	m.StartCalls++
	m.LastCreds = creds
	m.Mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx, creds)
	}
	return &models.ScalperStatus{IsRunning: true, Symbol: creds.Symbol, Logs: []string{"started"}}, nil
}

func (m *MockTrading) StopScalper(ctx context.Context) error {
	m.Mu.Lock()
	m.StopCalls++
	m.Mu.Unlock()
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

func (m *MockTrading) ScalperStatus(ctx context.Context) (*models.ScalperStatus, error) {
	m.Mu.Lock()
	m.StatusCalls++
	m.Mu.Unlock()
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &models.ScalperStatus{IsRunning: true}, nil
}

func (m *MockTrading) Counts() (start, stop, status int) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.StartCalls, m.StopCalls, m.StatusCalls
}

// MockPublisher records published events. The first FailFirst calls
// return Err instead.
type MockPublisher struct {
	Mu        sync.Mutex
	Events    []models.Event
	FailFirst int
	Err       error
	Calls     int
}

func (m *MockPublisher) Publish(_ context.Context, evt models.Event) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	if m.Calls <= m.FailFirst {
		return m.Err
	}
	m.Events = append(m.Events, evt)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Types() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}

// MockArchive records archived series keys.
type MockArchive struct {
	Mu     sync.Mutex
	Stored []string
}

func (m *MockArchive) StoreSeries(_ context.Context, coinID string, tf repository.Timeframe, _ *models.OHLCVSeries) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Stored = append(m.Stored, coinID+":"+tf.Label())
	return nil
}

func (m *MockArchive) Close() error { return nil }

func (m *MockArchive) Keys() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return append([]string(nil), m.Stored...)
}

// NopMetrics satisfies repository.Metrics.
type NopMetrics struct{}

func (NopMetrics) RecordFeedFetch(string, bool, float64) {}
func (NopMetrics) RecordScalperState(string) {}
func (NopMetrics) RecordPublished(string) {}
func (NopMetrics) RecordError(string) {}
func (NopMetrics) RecordLatency(string, float64) {}

// Gate lets a test hold a fake call open until released.
type Gate struct {
	Entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func NewGate() *Gate {
	return &Gate{Entered: make(chan struct{}, 16), release: make(chan struct{})}
}

// Wait signals entry and blocks until Release or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	g.Entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIgnoringContext blocks until Release, modelling a request that cannot
// be aborted once sent.
func (g *Gate) WaitIgnoringContext() {
	g.Entered <- struct{}{}
	<-g.release
}

func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }
