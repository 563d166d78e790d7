package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"CryptoDash/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	// Backend is the remote analytics/trading service.
	Backend struct {
		BaseURL   string        `yaml:"base_url" default:"http://localhost:8000" validate:"required,url"`
		Timeout   time.Duration `yaml:"timeout" default:"15s"`
		Retries   int           `yaml:"retries" validate:"gte=0"`
		RateLimit struct {
			RPS   float64 `yaml:"rps" default:"5" validate:"gt=0"`
			Burst int     `yaml:"burst" default:"10" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"backend"`

	Feeds struct {
		OHLCVInterval      time.Duration `yaml:"ohlcv_interval" default:"60s"`
		OverviewInterval   time.Duration `yaml:"overview_interval" default:"60s"`
		PredictionInterval time.Duration `yaml:"prediction_interval" default:"60s"`
		FetchTimeout       time.Duration `yaml:"fetch_timeout" default:"20s"`
	} `yaml:"feeds"`

	Scalper struct {
		PollInterval time.Duration `yaml:"poll_interval" default:"5s"`
		CallTimeout  time.Duration `yaml:"call_timeout" default:"15s"`
	} `yaml:"scalper"`

	Dashboard struct {
		DefaultCoin      string `yaml:"default_coin" default:"bitcoin" validate:"required"`
		DefaultTimeframe int    `yaml:"default_timeframe" default:"30" validate:"oneof=1 7 14 30 90"`
		CountdownSeconds int    `yaml:"countdown_seconds" default:"60" validate:"gt=0"`
	} `yaml:"dashboard"`

	Cache struct {
		SnapshotTTL time.Duration `yaml:"snapshot_ttl" default:"24h"`
		MemorySize  int           `yaml:"memory_size" default:"256"`
		Redis       struct {
			Enabled     bool          `yaml:"enabled"`
			Addr        string        `yaml:"addr" default:"localhost:6379"`
			Password    string        `yaml:"password"`
			DB          int           `yaml:"db"`
			Prefix      string        `yaml:"prefix" default:"cryptodash:"`
			PoolSize    int           `yaml:"pool_size" default:"10" validate:"gte=0"`
			MinIdle     int           `yaml:"min_idle" default:"2" validate:"gte=0"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"cryptodash.events"`
		LogsTopic    string   `yaml:"logs_topic" default:"cryptodash.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		LogFlushInterval time.Duration `yaml:"log_flush_interval" default:"30s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"cryptodash"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Missing keys fall back to
// their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	// defaults first so an explicit `false` or `0` in the file survives
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("CRYPTODASH_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CRYPTODASH_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	c.Server.Port = util.ParseIntDefault(getenv("CRYPTODASH_PORT"), c.Server.Port)
	if v := util.SplitList(getenv("CRYPTODASH_ALLOW_ORIGINS")); len(v) > 0 {
		c.Server.AllowOrigins = v
	}
	if v := getenv("CRYPTODASH_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("CRYPTODASH_DEFAULT_COIN"); v != "" {
		c.Dashboard.DefaultCoin = v
	}
	if v := getenv("CRYPTODASH_FEED_INTERVAL"); v != "" {
		d := util.ParseDurationDefault(v, c.Feeds.OHLCVInterval)
		c.Feeds.OHLCVInterval, c.Feeds.OverviewInterval, c.Feeds.PredictionInterval = d, d, d
	}
	c.Scalper.PollInterval = util.ParseDurationDefault(getenv("CRYPTODASH_SCALPER_POLL"), c.Scalper.PollInterval)
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := util.SplitList(getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.Kafka.Brokers = v
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	c.ClickHouse.Enabled = util.ParseBoolDefault(getenv("CLICKHOUSE_ENABLED"), c.ClickHouse.Enabled)
}

var validate = validator.New()

// Validate checks field constraints plus the cross-field rules tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Feeds.OHLCVInterval <= 0 || c.Feeds.OverviewInterval <= 0 || c.Feeds.PredictionInterval <= 0 {
		return fmt.Errorf("feed intervals must be positive")
	}
	if c.Scalper.PollInterval <= 0 {
		return fmt.Errorf("scalper.poll_interval must be positive")
	}
	return nil
}
