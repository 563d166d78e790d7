package repository

import (
	"context"
	"fmt"
	"time"

	"CryptoDash/internal/domain/models"
	domrepo "CryptoDash/internal/domain/repository"
	pkgch "CryptoDash/pkg/clickhouse"
	applogger "CryptoDash/pkg/logger"
)

const candleTable = "ohlcv_candles"

var candleColumns = []string{
	"coin_id", "days", "ts", "open", "high", "low", "close", "volume",
	"rsi", "macd", "macd_signal", "macd_hist", "fetched_at",
}

// CHCandleArchive implements CandleArchive backed by ClickHouse.
type CHCandleArchive struct {
	ch        *pkgch.Client
	database  string
	chunkSize int
	now       func() time.Time
	l         *applogger.Logger
}

// NewCHCandleArchive creates an archive writing into database.ohlcv_candles.
func NewCHCandleArchive(ch *pkgch.Client, database string) *CHCandleArchive {
	return &CHCandleArchive{ch: ch, database: database, chunkSize: 2000, now: time.Now}
}

// SetLogger injects a structured logger.
func (a *CHCandleArchive) SetLogger(l *applogger.Logger) { a.l = l }

// EnsureSchema creates the database and candle table if missing.
func (a *CHCandleArchive) EnsureSchema(ctx context.Context) error {
	return a.ch.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", a.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            coin_id     LowCardinality(String),
            days        UInt16,
            ts          DateTime64(3, 'UTC'),
            open        Float64,
            high        Float64,
            low         Float64,
            close       Float64,
            volume      Float64,
            rsi         Nullable(Float64),
            macd        Nullable(Float64),
            macd_signal Nullable(Float64),
            macd_hist   Nullable(Float64),
            fetched_at  DateTime64(3, 'UTC')
        ) ENGINE = ReplacingMergeTree(fetched_at)
        ORDER BY (coin_id, days, ts)`, a.table()),
	})
}

func (a *CHCandleArchive) StoreSeries(ctx context.Context, coinID string, tf domrepo.Timeframe, series *models.OHLCVSeries) error {
	if series == nil || len(series.Prices) == 0 {
		return nil
	}
	start := time.Now()
	fetchedAt := a.now().UTC()

	rows := make([][]any, 0, len(series.Prices))
	for _, p := range series.Prices {
		rows = append(rows, []any{
			coinID,
			uint16(tf.Days()),
			p.Timestamp().UTC(),
			p.Open, p.High, p.Low, p.Close, p.Volume,
			p.RSI, p.MACD, p.MACDSignal, p.MACDHist,
			fetchedAt,
		})
	}

	if err := a.ch.InsertRows(ctx, a.table(), candleColumns, rows, a.chunkSize); err != nil {
		if a.l != nil {
			a.l.Error("clickhouse store_series error",
				applogger.String("coin_id", coinID),
				applogger.String("tf", tf.Label()),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("archive %s/%s: %w", coinID, tf.Label(), err)
	}
	if a.l != nil {
		a.l.Debug("clickhouse store_series ok",
			applogger.String("coin_id", coinID),
			applogger.String("tf", tf.Label()),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (a *CHCandleArchive) Close() error {
	return a.ch.Close()
}

func (a *CHCandleArchive) table() string {
	return a.database + "." + candleTable
}

// NoopCandleArchive discards series. Used when ClickHouse is disabled.
type NoopCandleArchive struct{}

func (NoopCandleArchive) StoreSeries(context.Context, string, domrepo.Timeframe, *models.OHLCVSeries) error {
	return nil
}
func (NoopCandleArchive) Close() error { return nil }
