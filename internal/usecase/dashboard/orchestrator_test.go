package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/testutils"
	"CryptoDash/internal/usecase/feeds"
	"CryptoDash/internal/usecase/scalper"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []models.Event
	archived []string
}

func (s *recordingSink) PublishEvent(evt models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return true
}

func (s *recordingSink) ArchiveSeries(coinID string, tf repository.Timeframe, _ *models.OHLCVSeries) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, coinID+":"+tf.Label())
	return true
}

func (s *recordingSink) count(typ string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func (s *recordingSink) scalperStates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if p, ok := e.Payload.(models.ScalperEventPayload); ok {
			out = append(out, p.State)
		}
	}
	return out
}

type fixture struct {
	orch   *Orchestrator
	poller *feeds.Poller
	market *testutils.MockMarket
	trade  *testutils.MockTrading
	sink   *recordingSink
}

func newFixture(t *testing.T, market *testutils.MockMarket, opts ...Option) *fixture {
	t.Helper()
	if market == nil {
		market = &testutils.MockMarket{}
	}
	poller := feeds.NewPoller(feeds.WithFetchTimeout(5 * time.Second))
	trade := &testutils.MockTrading{}
	ctrl := scalper.NewController(trade, scalper.WithPollInterval(time.Hour))
	sink := &recordingSink{}

	opts = append([]Option{
		WithIntervals(time.Hour, time.Hour, time.Hour),
		WithCountdown(60, time.Hour),
		WithSink(sink),
	}, opts...)
	orch, err := New(poller, market, market, ctrl, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		orch.Close()
		ctrl.Close()
		poller.Close()
	})
	return &fixture{orch: orch, poller: poller, market: market, trade: trade, sink: sink}
}

func waitView(t *testing.T, o *Orchestrator, cond func(View) bool) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		v = o.Dashboard()
		return cond(v)
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func TestStartLoadsAllFeedsForDefaultSelection(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.Start(context.Background())

	v := waitView(t, f.orch, func(v View) bool {
		return v.Overview.Status == feeds.StatusFresh &&
			v.Series.Status == feeds.StatusFresh &&
			v.Prediction.Status == feeds.StatusFresh
	})

	assert.Equal(t, Selection{CoinID: "bitcoin", Days: 30}, v.Selection)
	assert.Equal(t, "30D", v.Timeframe)
	assert.Equal(t, TabSignals, v.Tab)
	assert.Equal(t, 60, v.Countdown)
	require.NotNil(t, v.Overview.Data)
	assert.Equal(t, "bitcoin", v.Overview.Data.Name)
	assert.Equal(t, 3, v.Series.Points)
	require.NotNil(t, v.Prediction.Data)
	assert.False(t, v.Prediction.Unavailable)
	assert.Equal(t, models.SessionIdle, v.Scalper.State)

	assert.Equal(t, 1, f.market.CallCount("ohlcv:bitcoin:30D"))
	assert.Equal(t, 1, f.market.CallCount("overview:bitcoin"))
	assert.Equal(t, 1, f.market.CallCount("prediction:bitcoin"))

	require.Eventually(t, func() bool { return f.sink.count(models.EventFeedRefreshed) == 3 }, time.Second, 5*time.Millisecond)
	f.sink.mu.Lock()
	assert.Equal(t, []string{"bitcoin:30D"}, f.sink.archived)
	f.sink.mu.Unlock()
}

func TestLateResponseForPreviousInstrumentDoesNotReachView(t *testing.T) {
	gate := testutils.NewGate()
	market := &testutils.MockMarket{
		OverviewFunc: func(_ context.Context, coinID string) (*models.MarketOverview, error) {
			if coinID == "bitcoin" {
				gate.WaitIgnoringContext()
			}
			return &models.MarketOverview{Name: coinID, CurrentPrice: 1}, nil
		},
	}
	f := newFixture(t, market)
	f.orch.Start(context.Background())

	<-gate.Entered
	_, err := f.orch.Select("ethereum", 0)
	require.NoError(t, err)

	waitView(t, f.orch, func(v View) bool {
		return v.Overview.Status == feeds.StatusFresh && v.Overview.Data != nil
	})

	gate.Release()
	btcKey := feeds.Key{Kind: feeds.KindOverview, Params: "bitcoin"}
	require.Eventually(t, func() bool {
		e, _ := f.poller.Get(btcKey)
		return e.Status == feeds.StatusFresh
	}, 2*time.Second, 5*time.Millisecond)

	v := f.orch.Dashboard()
	assert.Equal(t, "ethereum", v.Selection.CoinID)
	require.NotNil(t, v.Overview.Data)
	assert.Equal(t, "ethereum", v.Overview.Data.Name)
}

func TestChangingDaysOnlyResubscribesHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.Start(context.Background())
	waitView(t, f.orch, func(v View) bool { return v.Prediction.Status == feeds.StatusFresh && v.Overview.Status == feeds.StatusFresh })

	sel, err := f.orch.Select("", 7)
	require.NoError(t, err)
	assert.Equal(t, Selection{CoinID: "bitcoin", Days: 7}, sel)

	waitView(t, f.orch, func(v View) bool { return v.Series.Status == feeds.StatusFresh && v.Timeframe == "7D" })
	assert.Equal(t, 1, f.market.CallCount("ohlcv:bitcoin:7D"))
	assert.Equal(t, 1, f.market.CallCount("overview:bitcoin"))
	assert.Equal(t, 1, f.market.CallCount("prediction:bitcoin"))
}

func TestSwitchingBackRendersCachedEntryAtOnce(t *testing.T) {
	var ethCalls atomic.Int32
	gate := testutils.NewGate()
	market := &testutils.MockMarket{
		OverviewFunc: func(ctx context.Context, coinID string) (*models.MarketOverview, error) {
			if coinID == "bitcoin" && ethCalls.Load() > 0 {
				// hold the refetch so the cached value is what renders
				_ = gate.Wait(ctx)
			}
			if coinID == "ethereum" {
				ethCalls.Add(1)
			}
			return &models.MarketOverview{Name: coinID}, nil
		},
	}
	f := newFixture(t, market, WithIntervals(time.Hour, time.Millisecond, time.Hour))
	defer gate.Release()
	f.orch.Start(context.Background())
	waitView(t, f.orch, func(v View) bool { return v.Overview.Data != nil })

	_, err := f.orch.Select("ethereum", 0)
	require.NoError(t, err)
	waitView(t, f.orch, func(v View) bool { return v.Overview.Data != nil && v.Overview.Data.Name == "ethereum" })

	_, err = f.orch.Select("bitcoin", 0)
	require.NoError(t, err)
	v := f.orch.Dashboard()
	require.NotNil(t, v.Overview.Data)
	assert.Equal(t, "bitcoin", v.Overview.Data.Name)
}

func TestSelectRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.Select("", 5)
	assert.ErrorIs(t, err, models.ErrInvalidSelection)
	_, err = f.orch.Select("  ", 0)
	require.NoError(t, err)
	assert.Equal(t, Selection{CoinID: "bitcoin", Days: 30}, f.orch.Selection())

	sel, err := f.orch.Select(" Solana ", 90)
	require.NoError(t, err)
	assert.Equal(t, Selection{CoinID: "solana", Days: 90}, sel)
}

func TestNewRejectsInvalidDefault(t *testing.T) {
	poller := feeds.NewPoller()
	defer poller.Close()
	ctrl := scalper.NewController(&testutils.MockTrading{})
	_, err := New(poller, &testutils.MockMarket{}, &testutils.MockMarket{}, ctrl,
		WithDefaultSelection(Selection{CoinID: "bitcoin", Days: 3}))
	assert.ErrorIs(t, err, models.ErrInvalidSelection)
}

func TestPredictionUnavailableOnlyWithoutPriorValue(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	market := &testutils.MockMarket{
		PredictionFunc: func(context.Context, string) (*models.Prediction, error) {
			if fail.Load() {
				return nil, errors.New("model offline")
			}
			return &models.Prediction{OverallSignal: models.SignalSell, Confidence: 150}, nil
		},
	}
	f := newFixture(t, market)
	f.orch.Start(context.Background())

	v := waitView(t, f.orch, func(v View) bool { return v.Prediction.Status == feeds.StatusError })
	assert.True(t, v.Prediction.Unavailable)
	assert.Nil(t, v.Prediction.Data)
	assert.Contains(t, v.Prediction.Error, "model offline")

	fail.Store(false)
	key := feeds.Key{Kind: feeds.KindPrediction, Params: "bitcoin"}
	src := feeds.NewSource(feeds.KindPrediction, "bitcoin", func(ctx context.Context) (*models.Prediction, error) {
		return market.FetchPrediction(ctx, "bitcoin")
	})
	require.Equal(t, key, src.Key())
	f.poller.Refresh(src)

	v = f.orch.Dashboard()
	require.NotNil(t, v.Prediction.Data)
	assert.Equal(t, 100.0, v.Prediction.Data.Confidence)

	fail.Store(true)
	f.poller.Refresh(src)
	v = f.orch.Dashboard()
	assert.Equal(t, feeds.StatusError, v.Prediction.Status)
	assert.False(t, v.Prediction.Unavailable)
	require.NotNil(t, v.Prediction.Data)
	assert.Equal(t, models.SignalSell, v.Prediction.Data.Signal)
	assert.GreaterOrEqual(t, f.sink.count(models.EventFeedFailed), 2)
}

func TestTabAndCountdown(t *testing.T) {
	f := newFixture(t, nil, WithCountdown(3, time.Hour))

	require.NoError(t, f.orch.SetTab(TabScalper))
	assert.Equal(t, TabScalper, f.orch.Dashboard().Tab)
	assert.ErrorIs(t, f.orch.SetTab("orders"), models.ErrInvalidSelection)

	f.orch.mu.Lock()
	f.orch.countdown = 1
	f.orch.mu.Unlock()
	_, err := f.orch.Select("", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, f.orch.Dashboard().Countdown, "timeframe change keeps the countdown")

	_, err = f.orch.Select("ethereum", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, f.orch.Dashboard().Countdown, "instrument change resets the countdown")
}

func TestNextCountdownWraps(t *testing.T) {
	assert.Equal(t, 59, nextCountdown(60, 60))
	assert.Equal(t, 1, nextCountdown(2, 60))
	assert.Equal(t, 60, nextCountdown(1, 60))
	assert.Equal(t, 60, nextCountdown(0, 60))
}

func TestCountdownTicks(t *testing.T) {
	f := newFixture(t, nil, WithCountdown(60, 5*time.Millisecond))
	f.orch.Start(context.Background())
	waitView(t, f.orch, func(v View) bool { return v.Countdown < 60 })
}

func TestOnChangeListeners(t *testing.T) {
	f := newFixture(t, nil)
	var calls atomic.Int32
	cancel := f.orch.OnChange(func() { calls.Add(1) })

	require.NoError(t, f.orch.SetTab(TabScalper))
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, f.orch.SetTab(TabScalper))
	assert.Equal(t, int32(1), calls.Load(), "no-op change is not broadcast")

	cancel()
	require.NoError(t, f.orch.SetTab(TabSignals))
	assert.Equal(t, int32(1), calls.Load())
}

func TestScalperTransitionsArePublishedWithoutCredentials(t *testing.T) {
	f := newFixture(t, nil)
	creds := models.Credentials{ExchangeID: "binance", APIKey: "key-abcd", Secret: "s3cret", Symbol: "BTC/USDT"}

	_, err := f.orch.Scalper().Start(context.Background(), creds)
	require.NoError(t, err)
	_, err = f.orch.Scalper().Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"starting", "running", "stopping", "idle"}, f.sink.scalperStates())
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	for _, e := range f.sink.events {
		assert.NotContains(t, e.Key, "key-abcd")
		if p, ok := e.Payload.(models.ScalperEventPayload); ok {
			assert.NotContains(t, p.Reason, "s3cret")
		}
	}
}

func TestChartUsesCurrentSeries(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.Start(context.Background())
	waitView(t, f.orch, func(v View) bool { return v.Series.Status == feeds.StatusFresh })

	chart, state := f.orch.Chart(ChartLayout{Width: 300, Height: 100, VolumeHeight: 20, PanelHeight: 50, Gap: 0.2})
	assert.Equal(t, feeds.StatusFresh, state.Status)
	assert.Equal(t, 3, chart.Points)
	assert.Len(t, chart.Candles, 3)
	assert.Len(t, chart.Volume, 3)
	assert.Equal(t, 100.0, chart.VolumeBox.Y)
	assert.Equal(t, 120.0, chart.RSIBox.Y)
	assert.Equal(t, 170.0, chart.MACDBox.Y)
}

func TestBuildChartWithoutSeries(t *testing.T) {
	chart := BuildChart(nil, ChartLayout{Width: 100, Height: 50})
	assert.Zero(t, chart.Points)
	assert.Empty(t, chart.Candles)
	assert.Empty(t, chart.Volume)
}
