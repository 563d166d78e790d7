package scalper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/testutils"
	pkghttp "CryptoDash/pkg/http"
)

var creds = models.Credentials{
	ExchangeID: "binance",
	APIKey:     "key-1234",
	Secret:     "secret",
	Testnet:    true,
	Symbol:     "BTC/USDT",
}

func newController(svc *testutils.MockTrading) *Controller {
	return NewController(svc, WithPollInterval(10*time.Millisecond), WithCallTimeout(time.Second))
}

func TestStartSeedsLogsAndPolls(t *testing.T) {
	svc := &testutils.MockTrading{
		StartFunc: func(ctx context.Context, c models.Credentials) (*models.ScalperStatus, error) {
			return &models.ScalperStatus{IsRunning: true, Logs: []string{"connected"}}, nil
		},
		StatusFunc: func(ctx context.Context) (*models.ScalperStatus, error) {
			return &models.ScalperStatus{IsRunning: true, Logs: []string{"connected", "SIGNAL buy"}}, nil
		},
	}
	c := newController(svc)
	defer c.Close()

	snap, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, snap.State)
	assert.Equal(t, "BTC/USDT", snap.Symbol)
	assert.Equal(t, []string{"connected"}, snap.Logs)
	assert.True(t, c.HoldsCredentials())
	assert.Equal(t, creds, svc.LastCreds)

	assert.Eventually(t, func() bool {
		return len(c.Snapshot().Logs) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestStartIsRejectedWithoutNetworkWhileStarting(t *testing.T) {
	gate := testutils.NewGate()
	svc := &testutils.MockTrading{
		StartFunc: func(ctx context.Context, c models.Credentials) (*models.ScalperStatus, error) {
			if err := gate.Wait(ctx); err != nil {
				return nil, err
			}
			return &models.ScalperStatus{IsRunning: true}, nil
		},
	}
	c := newController(svc)
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.Start(context.Background(), creds)
		done <- err
	}()
	<-gate.Entered
	assert.Equal(t, models.SessionStarting, c.Snapshot().State)

	_, err := c.Start(context.Background(), creds)
	assert.ErrorIs(t, err, models.ErrSessionBusy)

	gate.Release()
	require.NoError(t, <-done)

	_, err = c.Start(context.Background(), creds)
	assert.ErrorIs(t, err, models.ErrSessionBusy)

	start, _, _ := svc.Counts()
	assert.Equal(t, 1, start)
}

func TestStartRejectionReturnsToIdleWithDetail(t *testing.T) {
	svc := &testutils.MockTrading{
		StartFunc: func(ctx context.Context, c models.Credentials) (*models.ScalperStatus, error) {
			return nil, &pkghttp.StatusError{StatusCode: 400, Detail: "Failed to start scalper: invalid api key"}
		},
	}
	c := newController(svc)

	snap, err := c.Start(context.Background(), creds)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrScalperStartRejected)
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.Equal(t, "Failed to start scalper: invalid api key", snap.LastError)
	assert.False(t, c.HoldsCredentials())
}

func TestStartValidatesCredentialsLocally(t *testing.T) {
	svc := &testutils.MockTrading{}
	c := newController(svc)

	_, err := c.Start(context.Background(), models.Credentials{ExchangeID: "binance", Symbol: "BTC/USDT"})
	assert.ErrorIs(t, err, models.ErrScalperStartRejected)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	start, _, _ := svc.Counts()
	assert.Zero(t, start)
	assert.Equal(t, models.SessionIdle, c.Snapshot().State)
}

func TestStopHaltsPollingAndClearsCredentials(t *testing.T) {
	svc := &testutils.MockTrading{}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, status := svc.Counts()
		return status >= 1
	}, time.Second, 5*time.Millisecond)

	snap, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.False(t, c.HoldsCredentials())

	// let a poll that was already past its guard finish
	time.Sleep(20 * time.Millisecond)
	_, _, before := svc.Counts()
	time.Sleep(50 * time.Millisecond)
	_, stops, after := svc.Counts()
	assert.Equal(t, before, after)
	assert.Equal(t, 1, stops)
}

func TestPollHaltsWhileStopCallIsInFlight(t *testing.T) {
	gate := testutils.NewGate()
	defer gate.Release()
	svc := &testutils.MockTrading{
		StopFunc: func(ctx context.Context) error { return gate.Wait(ctx) },
	}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, status := svc.Counts()
		return status >= 2
	}, time.Second, 5*time.Millisecond)

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := c.Stop(context.Background())
		done <- snap
	}()
	select {
	case <-gate.Entered:
	case <-time.After(time.Second):
		t.Fatal("stop call never reached the backend")
	}

	assert.Equal(t, models.SessionStopping, c.Snapshot().State)
	assert.False(t, c.HoldsCredentials())

	time.Sleep(20 * time.Millisecond)
	_, _, before := svc.Counts()
	time.Sleep(50 * time.Millisecond)
	_, _, after := svc.Counts()
	assert.Equal(t, before, after)

	_, err = c.Start(context.Background(), creds)
	assert.ErrorIs(t, err, models.ErrSessionBusy)
	starts, _, _ := svc.Counts()
	assert.Equal(t, 1, starts)

	gate.Release()
	select {
	case snap := <-done:
		assert.Equal(t, models.SessionIdle, snap.State)
	case <-time.After(time.Second):
		t.Fatal("stop did not return after release")
	}
}

func TestLateStatusAfterStopIsDiscarded(t *testing.T) {
	gate := testutils.NewGate()
	svc := &testutils.MockTrading{
		StartFunc: func(ctx context.Context, c models.Credentials) (*models.ScalperStatus, error) {
			return &models.ScalperStatus{IsRunning: true, Logs: []string{"connected"}}, nil
		},
		StatusFunc: func(ctx context.Context) (*models.ScalperStatus, error) {
			gate.WaitIgnoringContext()
			return &models.ScalperStatus{IsRunning: true, Logs: []string{"connected", "late"}}, nil
		},
	}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	<-gate.Entered

	_, err = c.Stop(context.Background())
	require.NoError(t, err)

	gate.Release()
	time.Sleep(30 * time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.Equal(t, []string{"connected"}, snap.Logs)
}

func TestSessionEndedExternally(t *testing.T) {
	svc := &testutils.MockTrading{
		StatusFunc: func(ctx context.Context) (*models.ScalperStatus, error) {
			return &models.ScalperStatus{IsRunning: false, Logs: []string{"Error: insufficient balance"}}, nil
		},
	}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.Snapshot().State == models.SessionIdle
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, "session ended externally", snap.Reason)
	assert.Equal(t, []string{"Error: insufficient balance"}, snap.Logs)
	assert.False(t, c.HoldsCredentials())

	_, stops, _ := svc.Counts()
	assert.Zero(t, stops)
}

func TestPollErrorKeepsSessionRunning(t *testing.T) {
	svc := &testutils.MockTrading{
		StatusFunc: func(ctx context.Context) (*models.ScalperStatus, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, status := svc.Counts()
		return status >= 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, models.SessionRunning, c.Snapshot().State)
	assert.True(t, c.HoldsCredentials())
}

func TestStopRequiresRunning(t *testing.T) {
	c := newController(&testutils.MockTrading{})
	_, err := c.Stop(context.Background())
	assert.ErrorIs(t, err, models.ErrSessionNotRunning)
}

func TestStopFailureStillEndsLocally(t *testing.T) {
	svc := &testutils.MockTrading{
		StopFunc: func(ctx context.Context) error { return errors.New("timeout") },
	}
	c := newController(svc)
	defer c.Close()

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)

	snap, err := c.Stop(context.Background())
	assert.ErrorIs(t, err, models.ErrScalperStopFailed)
	assert.Equal(t, models.SessionIdle, snap.State)
	assert.Equal(t, "timeout", snap.LastError)
	assert.False(t, c.HoldsCredentials())
}

func TestObserversSeeTransitions(t *testing.T) {
	c := NewController(&testutils.MockTrading{}, WithPollInterval(time.Hour))
	defer c.Close()

	var (
		mu     sync.Mutex
		states []models.SessionState
	)
	c.Observe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)
	_, err = c.Stop(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.SessionState{
		models.SessionStarting,
		models.SessionRunning,
		models.SessionStopping,
		models.SessionIdle,
	}, states)
}

func TestCloseNotifiesObservers(t *testing.T) {
	c := NewController(&testutils.MockTrading{}, WithPollInterval(time.Hour))

	_, err := c.Start(context.Background(), creds)
	require.NoError(t, err)

	var got []Snapshot
	c.Observe(func(s Snapshot) { got = append(got, s) })
	c.Close()
	c.Close()

	require.Len(t, got, 1)
	assert.Equal(t, models.SessionIdle, got[0].State)
	assert.Equal(t, "controller closed", got[0].Reason)
	assert.False(t, c.HoldsCredentials())
}
