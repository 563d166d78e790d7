package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoDash/internal/domain/models"
	domrepo "CryptoDash/internal/domain/repository"
	"CryptoDash/internal/testutils"
	"CryptoDash/pkg/cache"
	pkgch "CryptoDash/pkg/clickhouse"
	pkgkafka "CryptoDash/pkg/kafka"
)

func TestCacheSnapshotStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(cache.WithRedisAddr(mr.Addr()), cache.WithRedisPrefix("cryptodash:"))
	require.NoError(t, err)
	store := NewCacheSnapshotStore(rc)
	defer store.Close()

	ctx := context.Background()
	_, ok, err := store.Load(ctx, "feed:overview:bitcoin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "feed:overview:bitcoin", []byte(`{"v":1}`), time.Hour))
	assert.True(t, mr.Exists("cryptodash:feed:overview:bitcoin"))

	data, ok, err := store.Load(ctx, "feed:overview:bitcoin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(data))
}

func TestCacheSnapshotStore_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(cache.WithRedisAddr(mr.Addr()))
	require.NoError(t, err)
	store := NewCacheSnapshotStore(rc)
	mr.Close()

	_, ok, err := store.Load(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaEventPublisher_KeysByEventKey(t *testing.T) {
	w := &recordingWriter{}
	producer, err := pkgkafka.NewProducer(pkgkafka.WithWriter(w))
	require.NoError(t, err)
	pub := NewKafkaEventPublisher(producer, "cryptodash.events")

	evt := models.Event{
		ID:   "id-1",
		Type: models.EventScalperState,
		Key:  "scalper",
		Time: time.Unix(1700000000, 0).UTC(),
		Payload: models.ScalperEventPayload{
			State:  "running",
			Symbol: "BTC/USDT",
		},
	}
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "cryptodash.events", msg.Topic)
	assert.Equal(t, "scalper", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "scalper.state", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "scalper.state", decoded["type"])
	assert.Equal(t, "running", decoded["payload"].(map[string]any)["state"])
	assert.NotContains(t, string(msg.Value), "api_key")
	require.NoError(t, pub.Close())
}

func TestCHCandleArchive_StoreSeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	archive := NewCHCandleArchive(pkgch.NewFromDB(db), "cryptodash")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	archive.now = func() time.Time { return fixed }

	series := testutils.SampleSeries("BTC", 3)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cryptodash.ohlcv_candles (coin_id, days, ts")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, archive.StoreSeries(context.Background(), "bitcoin", domrepo.TF30D, series))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHCandleArchive_EmptySeriesIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	archive := NewCHCandleArchive(pkgch.NewFromDB(db), "cryptodash")

	require.NoError(t, archive.StoreSeries(context.Background(), "bitcoin", domrepo.TF7D, nil))
	require.NoError(t, archive.StoreSeries(context.Background(), "bitcoin", domrepo.TF7D, &models.OHLCVSeries{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHCandleArchive_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	archive := NewCHCandleArchive(pkgch.NewFromDB(db), "cryptodash")

	mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE IF NOT EXISTS cryptodash")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS cryptodash.ohlcv_candles")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, archive.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopAdapters(t *testing.T) {
	assert.NoError(t, NoopEventPublisher{}.Publish(context.Background(), models.Event{}))
	assert.NoError(t, NoopCandleArchive{}.StoreSeries(context.Background(), "x", domrepo.TF1D, nil))
}
