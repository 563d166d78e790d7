// Package scalper tracks the local state of the remote trading bot session
// and polls its status while it runs.
package scalper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	pkghttp "CryptoDash/pkg/http"
	applogger "CryptoDash/pkg/logger"
)

// Snapshot is a copy of the controller state for display.
type Snapshot struct {
	State     models.SessionState `json:"state"`
	Symbol    string              `json:"symbol,omitempty"`
	Logs      []string            `json:"logs"`
	LastError string              `json:"last_error,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type Config struct {
	PollInterval time.Duration
	CallTimeout  time.Duration
	Metrics      repository.Metrics
	Logger       *applogger.Logger
}

type Option func(*Config)

func WithPollInterval(d time.Duration) Option { return func(c *Config) { c.PollInterval = d } }
func WithCallTimeout(d time.Duration) Option { return func(c *Config) { c.CallTimeout = d } }
func WithMetrics(m repository.Metrics) Option { return func(c *Config) { c.Metrics = m } }
func WithLogger(l *applogger.Logger) Option { return func(c *Config) { c.Logger = l } }

// Controller serializes start/stop of the remote scalper. Every transition
// bumps epoch; responses carrying an older epoch are dropped, which is how a
// status poll that returns after Stop is kept from reviving the session.
type Controller struct {
	svc repository.TradingService
	cfg Config

	mu        sync.Mutex
	state     models.SessionState
	creds     *models.Credentials
	symbol    string
	logs      []string
	lastErr   string
	reason    string
	updatedAt time.Time
	epoch     uint64
	stopPoll  context.CancelFunc
	observers []func(Snapshot)
}

func NewController(svc repository.TradingService, opts ...Option) *Controller {
	cfg := Config{
		PollInterval: 5 * time.Second,
		CallTimeout:  15 * time.Second,
		Logger:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{svc: svc, cfg: cfg, updatedAt: time.Now()}
}

// Observe registers fn for every state or log change.
func (c *Controller) Observe(fn func(Snapshot)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// HoldsCredentials reports whether credentials are currently retained.
func (c *Controller) HoldsCredentials() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds != nil
}

// Start asks the backend to launch the bot. It is only legal from Idle; any
// other state returns ErrSessionBusy without touching the network. On
// rejection the session returns to Idle, the credentials are dropped and the
// backend's detail is carried in the returned error.
func (c *Controller) Start(ctx context.Context, creds models.Credentials) (Snapshot, error) {
	if err := creds.Validate(); err != nil {
		return c.Snapshot(), fmt.Errorf("%w: %w", models.ErrScalperStartRejected, err)
	}

	c.mu.Lock()
	if c.state != models.SessionIdle {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, models.ErrSessionBusy
	}
	c.epoch++
	epoch := c.epoch
	held := creds
	c.creds = &held
	c.symbol = creds.Symbol
	c.lastErr, c.reason = "", ""
	c.logs = nil
	c.transitionLocked(models.SessionStarting)
	starting := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(starting)

	c.cfg.Logger.Info("scalper starting",
		applogger.String("exchange", creds.ExchangeID),
		applogger.String("symbol", creds.Symbol),
		applogger.Bool("testnet", creds.Testnet),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	status, err := c.svc.StartScalper(callCtx, held)
	cancel()

	c.mu.Lock()
	if c.epoch != epoch || c.state != models.SessionStarting {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: session was reset while starting", models.ErrScalperStartRejected)
	}

	if err != nil {
		c.creds = nil
		c.symbol = ""
		c.lastErr = detailOf(err)
		c.transitionLocked(models.SessionIdle)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)

		c.recordError("scalper_start")
		c.cfg.Logger.Warn("scalper start rejected", applogger.String("detail", snap.LastError), applogger.Error(err))
		return snap, fmt.Errorf("%w: %w", models.ErrScalperStartRejected, err)
	}

	if status != nil {
		c.logs = append([]string(nil), status.Logs...)
	}
	c.transitionLocked(models.SessionRunning)
	pollCtx, stop := context.WithCancel(context.Background())
	c.stopPoll = stop
	snap := c.snapshotLocked()
	c.mu.Unlock()

	go c.poll(pollCtx, epoch)
	c.notify(snap)
	c.cfg.Logger.Info("scalper running", applogger.String("symbol", snap.Symbol))
	return snap, nil
}

// Stop halts the session. Polling stops and credentials are dropped before
// the remote call is made, so nothing that arrives afterwards can move the
// session back to Running. The session ends Idle even if the remote stop
// fails; the failure is returned so the operator can retry or check the bot.
func (c *Controller) Stop(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state != models.SessionRunning {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, models.ErrSessionNotRunning
	}
	c.epoch++
	epoch := c.epoch
	c.haltPollLocked()
	c.creds = nil
	c.transitionLocked(models.SessionStopping)
	stopping := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(stopping)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	err := c.svc.StopScalper(callCtx)
	cancel()

	c.mu.Lock()
	if c.epoch == epoch && c.state == models.SessionStopping {
		c.reason = "stopped by operator"
		if err != nil {
			c.lastErr = detailOf(err)
		}
		c.transitionLocked(models.SessionIdle)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	if err != nil {
		c.recordError("scalper_stop")
		c.cfg.Logger.Error("scalper stop failed", applogger.Error(err))
		return snap, fmt.Errorf("%w: %w", models.ErrScalperStopFailed, err)
	}
	c.cfg.Logger.Info("scalper stopped")
	return snap, nil
}

// Close abandons any session locally without calling the backend.
func (c *Controller) Close() {
	c.mu.Lock()
	c.epoch++
	c.haltPollLocked()
	c.creds = nil
	if c.state == models.SessionIdle {
		c.mu.Unlock()
		return
	}
	c.reason = "controller closed"
	c.transitionLocked(models.SessionIdle)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) poll(ctx context.Context, epoch uint64) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.pollOnce(ctx, epoch)
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context, epoch uint64) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	status, err := c.svc.ScalperStatus(callCtx)
	cancel()

	c.mu.Lock()
	if c.epoch != epoch || c.state != models.SessionRunning {
		c.mu.Unlock()
		c.cfg.Logger.Debug("discarding late scalper status")
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.recordError("scalper_poll")
		c.cfg.Logger.Warn("scalper status poll failed", applogger.Error(fmt.Errorf("%w: %w", models.ErrScalperPoll, err)))
		return
	}

	if status != nil {
		c.logs = append([]string(nil), status.Logs...)
	}
	ended := status != nil && !status.IsRunning
	if ended {
		c.epoch++
		c.haltPollLocked()
		c.creds = nil
		c.reason = "session ended externally"
		c.transitionLocked(models.SessionIdle)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if ended {
		c.cfg.Logger.Warn("scalper session ended externally", applogger.String("symbol", snap.Symbol))
	}
	c.notify(snap)
}

func (c *Controller) haltPollLocked() {
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
}

func (c *Controller) transitionLocked(s models.SessionState) {
	c.state = s
	c.updatedAt = time.Now()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordScalperState(s.String())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		Symbol:    c.symbol,
		Logs:      append([]string(nil), c.logs...),
		LastError: c.lastErr,
		Reason:    c.reason,
		UpdatedAt: c.updatedAt,
	}
}

func (c *Controller) notify(s Snapshot) {
	c.mu.Lock()
	observers := append([]func(Snapshot){}, c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

func (c *Controller) recordError(kind string) {
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordError(kind)
	}
}

// detailOf prefers the backend's explanation over the transport error text.
func detailOf(err error) string {
	if d := pkghttp.ErrorDetail(err); d != "" {
		return d
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}
