package repository

import (
	"context"
	"time"

	"CryptoDash/internal/domain/models"
)

// MarketData serves chart series and market summaries.
type MarketData interface {
	FetchOHLCV(ctx context.Context, coinID string, tf Timeframe) (*models.OHLCVSeries, error)
	FetchOverview(ctx context.Context, coinID string) (*models.MarketOverview, error)
}

// PredictionSource serves aggregated trading signals.
type PredictionSource interface {
	FetchPrediction(ctx context.Context, coinID string) (*models.Prediction, error)
}

// TradingService controls the remote scalper bot.
type TradingService interface {
	StartScalper(ctx context.Context, creds models.Credentials) (*models.ScalperStatus, error)
	StopScalper(ctx context.Context) error
	ScalperStatus(ctx context.Context) (*models.ScalperStatus, error)
}

// SnapshotStore persists the last good feed payloads for warm starts.
type SnapshotStore interface {
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Close() error
}

// EventPublisher ships dashboard events to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.Event) error
	Close() error
}

// CandleArchive keeps fetched series for offline analysis.
type CandleArchive interface {
	StoreSeries(ctx context.Context, coinID string, tf Timeframe, series *models.OHLCVSeries) error
	Close() error
}

type Metrics interface {
	RecordFeedFetch(kind string, ok bool, seconds float64)
	RecordScalperState(state string)
	RecordPublished(eventType string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
