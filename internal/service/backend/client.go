// Package backend talks to the analytics and trading REST service.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/service/ratelimit"
	xhttp "CryptoDash/pkg/http"
	applogger "CryptoDash/pkg/logger"
)

const (
	groupMarket     = "market"
	groupPrediction = "prediction"
	groupTrading    = "trading"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Limiter *ratelimit.Limiter
	HTTP    *http.Client
	Metrics repository.Metrics
	Logger  *applogger.Logger
}

type Option func(*ClientConfig)

func WithTimeout(d time.Duration) Option { return func(c *ClientConfig) { c.Timeout = d } }
func WithRetries(n int) Option { return func(c *ClientConfig) { c.Retries = n } }
func WithLimiter(l *ratelimit.Limiter) Option { return func(c *ClientConfig) { c.Limiter = l } }
func WithHTTPClient(hc *http.Client) Option { return func(c *ClientConfig) { c.HTTP = hc } }
func WithMetrics(m repository.Metrics) Option { return func(c *ClientConfig) { c.Metrics = m } }
func WithLogger(l *applogger.Logger) Option { return func(c *ClientConfig) { c.Logger = l } }

// Client implements MarketData, PredictionSource and TradingService.
type Client struct {
	cfg    ClientConfig
	client *xhttp.Client
}

var (
	_ repository.MarketData       = (*Client)(nil)
	_ repository.PredictionSource = (*Client)(nil)
	_ repository.TradingService   = (*Client)(nil)
)

func NewClient(baseURL string, opts ...Option) *Client {
	cfg := ClientConfig{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: 15 * time.Second,
		Logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	httpOpts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if cfg.HTTP != nil {
		httpOpts = append(httpOpts, xhttp.WithHTTPClient(cfg.HTTP))
	}
	return &Client{cfg: cfg, client: xhttp.NewClient(httpOpts...)}
}

// FetchOHLCV returns the series for coinID over tf, with points that break
// time ordering or carry non-finite values removed.
func (c *Client) FetchOHLCV(ctx context.Context, coinID string, tf repository.Timeframe) (*models.OHLCVSeries, error) {
	var out models.OHLCVSeries
	err := c.get(ctx, groupMarket, "/market/ohlcv", url.Values{
		"coin_id":     {coinID},
		"days":        {strconv.Itoa(tf.Days())},
		"vs_currency": {"usd"},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv %s/%s: %w", coinID, tf, err)
	}

	kept, dropped := models.SanitizeSeries(out.Prices)
	if dropped > 0 {
		c.cfg.Logger.Warn("dropped malformed price points",
			applogger.String("coin", coinID),
			applogger.Int("dropped", dropped),
			applogger.Error(models.ErrMalformedPayload),
		)
		out.Prices = kept
	}
	return &out, nil
}

func (c *Client) FetchOverview(ctx context.Context, coinID string) (*models.MarketOverview, error) {
	var out models.MarketOverview
	if err := c.get(ctx, groupMarket, "/market/overview", url.Values{"coin_id": {coinID}}, &out); err != nil {
		return nil, fmt.Errorf("fetch overview %s: %w", coinID, err)
	}
	return &out, nil
}

func (c *Client) FetchPrediction(ctx context.Context, coinID string) (*models.Prediction, error) {
	var out models.Prediction
	err := c.get(ctx, groupPrediction, "/prediction/signals", url.Values{
		"coin_id":   {coinID},
		"timeframe": {"1d"},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrPredictionUnavailable, coinID, err)
	}
	return &out, nil
}

type exchangeConfig struct {
	ExchangeID string  `json:"exchange_id"`
	APIKey     string  `json:"api_key"`
	Secret     string  `json:"secret"`
	Passphrase *string `json:"passphrase,omitempty"`
	Testnet    bool    `json:"testnet"`
}

type startResponse struct {
	Message string               `json:"message"`
	Status  models.ScalperStatus `json:"status"`
}

// StartScalper is never retried: the backend may have started the bot even
// when the response is lost.
func (c *Client) StartScalper(ctx context.Context, creds models.Credentials) (*models.ScalperStatus, error) {
	body := exchangeConfig{
		ExchangeID: creds.ExchangeID,
		APIKey:     creds.APIKey,
		Secret:     creds.Secret,
		Testnet:    creds.Testnet,
	}
	if creds.Passphrase != "" {
		pp := creds.Passphrase
		body.Passphrase = &pp
	}

	var out startResponse
	err := c.do(ctx, groupTrading, &xhttp.RequestOptions{
		Method:      xhttp.MethodPost,
		URL:         c.cfg.BaseURL + "/trading/start",
		QueryParams: url.Values{"symbol": {creds.Symbol}},
		Body:        body,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("start scalper: %w", err)
	}
	return &out.Status, nil
}

func (c *Client) StopScalper(ctx context.Context) error {
	err := c.do(ctx, groupTrading, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.cfg.BaseURL + "/trading/stop",
	}, nil)
	if err != nil {
		return fmt.Errorf("stop scalper: %w", err)
	}
	return nil
}

func (c *Client) ScalperStatus(ctx context.Context) (*models.ScalperStatus, error) {
	var out models.ScalperStatus
	if err := c.get(ctx, groupTrading, "/trading/status", nil, &out); err != nil {
		return nil, fmt.Errorf("scalper status: %w", err)
	}
	return &out, nil
}

// get issues an idempotent GET. With Retries set it retries transport failures
// and 5xx; by default a failure waits for the caller's next poll.
func (c *Client) get(ctx context.Context, group, path string, query url.Values, dest interface{}) error {
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + path,
		QueryParams: query,
	}

	var err error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = c.do(ctx, group, opts, dest); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, group string, opts *xhttp.RequestOptions, dest interface{}) error {
	if c.cfg.BaseURL == "" {
		return errors.New("backend base url not configured")
	}
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx, group); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	reqID := uuid.NewString()
	headers := map[string]string{"X-Request-ID": reqID}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	req := *opts
	req.Headers = headers

	start := time.Now()
	err := c.client.SendAndParse(ctx, &req, dest)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordLatency("backend_"+group, time.Since(start).Seconds())
		if err != nil {
			c.cfg.Metrics.RecordError("backend_" + group)
		}
	}
	if err != nil {
		c.cfg.Logger.Debug("backend request failed",
			applogger.String("request_id", reqID),
			applogger.String("method", opts.Method),
			applogger.String("url", opts.URL),
			applogger.Error(err),
		)
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
