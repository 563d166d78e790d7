package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"CryptoDash/internal/domain/repository"
	"CryptoDash/internal/handler/api"
	mid "CryptoDash/internal/middleware"
	internalrepo "CryptoDash/internal/repository"
	"CryptoDash/internal/service/backend"
	"CryptoDash/internal/service/ratelimit"
	"CryptoDash/internal/usecase/dashboard"
	"CryptoDash/internal/usecase/feeds"
	"CryptoDash/internal/usecase/scalper"
	"CryptoDash/pkg/cache"
	pkgch "CryptoDash/pkg/clickhouse"
	"CryptoDash/pkg/config"
	xhttp "CryptoDash/pkg/http"
	pkgkafka "CryptoDash/pkg/kafka"
	applogger "CryptoDash/pkg/logger"
	"CryptoDash/pkg/metrics"
	"CryptoDash/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "cryptodash"), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry with process and Go
// runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideCache builds the snapshot cache: in-process only, or Redis fronted
// by a small in-process layer when Redis is enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			cache.WithMemoryDefaultTTL(cfg.Cache.SnapshotTTL),
		), nil
	}

	redis, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdle),
		cache.WithRedisPingTimeout(cfg.Cache.Redis.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redis,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(time.Minute),
	), nil
}

// ProvideSnapshotStore exposes the cache as feed snapshot storage. The
// cleanup closes the underlying cache.
func ProvideSnapshotStore(c cache.Service, l *applogger.Logger) (repository.SnapshotStore, func()) {
	store := internalrepo.NewCacheSnapshotStore(c)
	return store, closeWith(l, "snapshot store", store.Close)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyedOrder(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes dashboard events to Kafka when enabled.
// The cleanup closes the producer.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) (repository.EventPublisher, func()) {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}, func() {}
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
	return pub, closeWith(l, "event publisher", pub.Close)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithEndpoint(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.UseHTTP),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(4, 2),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCandleArchive archives fetched series in ClickHouse when enabled.
// The cleanup closes the ClickHouse pool.
func ProvideCandleArchive(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.CandleArchive, func(), error) {
	if ch == nil {
		return internalrepo.NoopCandleArchive{}, func() {}, nil
	}
	archive := internalrepo.NewCHCandleArchive(ch, cfg.ClickHouse.Database)
	archive.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.EnsureSchema(ctx); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, closeWith(l, "candle archive", archive.Close), nil
}

func closeWith(l *applogger.Logger, name string, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			l.Warn("close error", applogger.String("resource", name), applogger.Error(err))
		}
	}
}

// ProvideLimiter creates the per-endpoint-group backend rate limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Backend.RateLimit.RPS, cfg.Backend.RateLimit.Burst)
}

// ProvideBackendClient creates the analytics and trading REST client.
func ProvideBackendClient(cfg *config.Config, limiter *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithRetries(cfg.Backend.Retries),
		backend.WithLimiter(limiter),
		backend.WithMetrics(m),
		backend.WithLogger(l.With(applogger.String("component", "backend"))),
	)
}

// ProvidePoller creates the feed poller with snapshot persistence.
func ProvidePoller(cfg *config.Config, store repository.SnapshotStore, m repository.Metrics, l *applogger.Logger) *feeds.Poller {
	return feeds.NewPoller(
		feeds.WithFetchTimeout(cfg.Feeds.FetchTimeout),
		feeds.WithSnapshotStore(store, cfg.Cache.SnapshotTTL),
		feeds.WithMetrics(m),
		feeds.WithLogger(l.With(applogger.String("component", "feeds"))),
	)
}

// ProvideScalperController creates the scalper session controller.
func ProvideScalperController(cfg *config.Config, client *backend.Client, m repository.Metrics, l *applogger.Logger) *scalper.Controller {
	return scalper.NewController(client,
		scalper.WithPollInterval(cfg.Scalper.PollInterval),
		scalper.WithCallTimeout(cfg.Scalper.CallTimeout),
		scalper.WithMetrics(m),
		scalper.WithLogger(l.With(applogger.String("component", "scalper"))),
	)
}

// ProvideEventPipeline creates the asynchronous event and archive pipeline.
func ProvideEventPipeline(pub repository.EventPublisher, archive repository.CandleArchive, m repository.Metrics, l *applogger.Logger) *mid.EventPipeline {
	return mid.NewEventPipeline(pub, archive, m,
		mid.WithBufferSize(1024),
		mid.WithMaxAttempts(3),
		mid.WithDeliveryTimeout(10*time.Second),
		mid.WithPipelineLogger(l.With(applogger.String("component", "pipeline"))),
	)
}

// ProvideOrchestrator creates the dashboard state container.
func ProvideOrchestrator(
	cfg *config.Config,
	poller *feeds.Poller,
	client *backend.Client,
	ctrl *scalper.Controller,
	pipeline *mid.EventPipeline,
	l *applogger.Logger,
) (*dashboard.Orchestrator, error) {
	return dashboard.New(poller, client, client, ctrl,
		dashboard.WithIntervals(cfg.Feeds.OHLCVInterval, cfg.Feeds.OverviewInterval, cfg.Feeds.PredictionInterval),
		dashboard.WithCountdown(cfg.Dashboard.CountdownSeconds, time.Second),
		dashboard.WithDefaultSelection(dashboard.Selection{
			CoinID: cfg.Dashboard.DefaultCoin,
			Days:   cfg.Dashboard.DefaultTimeframe,
		}),
		dashboard.WithSink(pipeline),
		dashboard.WithLogger(l.With(applogger.String("component", "dashboard"))),
	)
}

// ProvideStreamHub creates the websocket push hub.
func ProvideStreamHub(cfg *config.Config, orch *dashboard.Orchestrator, l *applogger.Logger) *api.StreamHub {
	return api.NewStreamHub(orch, l.With(applogger.String("component", "stream")),
		api.WithStreamOrigins(cfg.Server.AllowOrigins...),
	)
}

// ProvideHTTPHandler creates the dashboard REST handler.
func ProvideHTTPHandler(orch *dashboard.Orchestrator, stream *api.StreamHub, l *applogger.Logger) xhttp.Handler {
	return api.NewDashboardHandler(l.With(applogger.String("component", "api")), orch, stream)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l.With(applogger.String("component", "http"))),
	}
	if len(cfg.Server.AllowOrigins) > 0 {
		opts = append(opts, xhttp.WithCORS(true, cfg.Server.AllowOrigins...))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer(handler, opts...)
}

// ProvideApp creates the application and attaches the Kafka log collector
// when a producer is available.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	poller *feeds.Poller,
	ctrl *scalper.Controller,
	orch *dashboard.Orchestrator,
	pipeline *mid.EventPipeline,
	stream *api.StreamHub,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Kafka.LogFlushInterval,
			Topic:        cfg.Kafka.LogsTopic,
			Publisher:    producer,
		})
	}
	return server.New(cfg, l, poller, ctrl, orch, pipeline, stream, httpServer)
}
