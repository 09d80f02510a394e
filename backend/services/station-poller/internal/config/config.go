package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	libconfig "chargewatch/backend/libs/config"
	"chargewatch/backend/libs/retry"
	"chargewatch/backend/services/station-poller/internal/repository"
)

const (
	defaultURL          = "https://charging.eviny.no/api/map/chargingStations"
	defaultTimeout      = 30
	defaultMaxRetries   = 3
	defaultRetryDelay   = 5
	defaultOperator     = "Eviny"
	defaultDuration     = 24
	defaultInterval     = 60
	defaultOutputDir    = "data"
	defaultPort         = "8090"
	defaultRedisTTL     = 2 * 60 * 60
	defaultKafkaTopic   = "station-utilization"
	defaultFeedDeadline = 10
	defaultReadTimeout  = 15
	defaultWriteTimeout = 30
	defaultIdleTimeout  = 60
	defaultShutdown     = 10
)

// Config defines station poller configuration.
type Config struct {
	Upstream struct {
		URL               string `yaml:"url" env:"STATION_POLLER_API_URL"`
		TimeoutSeconds    int    `yaml:"timeoutSeconds" env:"STATION_POLLER_API_TIMEOUT"`
		MaxRetries        int    `yaml:"maxRetries" env:"STATION_POLLER_API_MAX_RETRIES"`
		RetryDelaySeconds int    `yaml:"retryDelaySeconds" env:"STATION_POLLER_API_RETRY_DELAY"`
		DefaultOperator   string `yaml:"defaultOperator" env:"STATION_POLLER_DEFAULT_OPERATOR"`
	} `yaml:"upstream"`
	Pipeline struct {
		Single          bool `yaml:"single" env:"STATION_POLLER_SINGLE"`
		DurationHours   int  `yaml:"durationHours" env:"STATION_POLLER_DURATION_HOURS"`
		IntervalMinutes int  `yaml:"intervalMinutes" env:"STATION_POLLER_INTERVAL_MINUTES"`
		ExpectFullDay   bool `yaml:"expectFullDay" env:"STATION_POLLER_EXPECT_FULL_DAY"`
	} `yaml:"pipeline"`
	Storage struct {
		OutputDir       string `yaml:"outputDir" env:"STATION_POLLER_OUTPUT_DIR"`
		StationsFile    string `yaml:"stationsFile" env:"STATION_POLLER_STATIONS_FILE"`
		UtilizationFile string `yaml:"utilizationFile" env:"STATION_POLLER_UTILIZATION_FILE"`
		HourlyFile      string `yaml:"hourlyFile" env:"STATION_POLLER_HOURLY_FILE"`
	} `yaml:"storage"`
	HTTP struct {
		Port                 string `yaml:"port" env:"STATION_POLLER_HTTP_PORT"`
		Disabled             bool   `yaml:"disabled" env:"STATION_POLLER_HTTP_DISABLED"`
		FeedWriteTimeoutSecs int    `yaml:"feedWriteTimeoutSeconds" env:"STATION_POLLER_FEED_WRITE_TIMEOUT"`
		ReadTimeoutSecs      int    `yaml:"readTimeoutSeconds" env:"STATION_POLLER_HTTP_READ_TIMEOUT"`
		WriteTimeoutSecs     int    `yaml:"writeTimeoutSeconds" env:"STATION_POLLER_HTTP_WRITE_TIMEOUT"`
		IdleTimeoutSecs      int    `yaml:"idleTimeoutSeconds" env:"STATION_POLLER_HTTP_IDLE_TIMEOUT"`
		ShutdownSecs         int    `yaml:"shutdownSeconds" env:"STATION_POLLER_HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	JWT struct {
		Secret string `yaml:"secret" env:"STATION_POLLER_JWT_SECRET"`
	} `yaml:"jwt"`
	Database struct {
		DSN string `yaml:"dsn" env:"STATION_POLLER_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"STATION_POLLER_REDIS_ADDR"`
		Password string `yaml:"password" env:"STATION_POLLER_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"STATION_POLLER_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"STATION_POLLER_REDIS_TTL"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers" env:"STATION_POLLER_KAFKA_BROKERS"`
		Topic   string   `yaml:"topic" env:"STATION_POLLER_KAFKA_TOPIC"`
	} `yaml:"kafka"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg := &Config{}
	cfg.Upstream.URL = defaultURL
	cfg.Upstream.TimeoutSeconds = defaultTimeout
	cfg.Upstream.MaxRetries = defaultMaxRetries
	cfg.Upstream.RetryDelaySeconds = defaultRetryDelay
	cfg.Upstream.DefaultOperator = defaultOperator
	cfg.Pipeline.DurationHours = defaultDuration
	cfg.Pipeline.IntervalMinutes = defaultInterval
	cfg.Storage.OutputDir = defaultOutputDir
	files := repository.DefaultFiles()
	cfg.Storage.StationsFile = files.Stations
	cfg.Storage.UtilizationFile = files.Utilization
	cfg.Storage.HourlyFile = files.Hourly
	cfg.HTTP.Port = defaultPort
	cfg.HTTP.FeedWriteTimeoutSecs = defaultFeedDeadline
	cfg.HTTP.ReadTimeoutSecs = defaultReadTimeout
	cfg.HTTP.WriteTimeoutSecs = defaultWriteTimeout
	cfg.HTTP.IdleTimeoutSecs = defaultIdleTimeout
	cfg.HTTP.ShutdownSecs = defaultShutdown
	cfg.Redis.TTL = defaultRedisTTL
	cfg.Kafka.Topic = defaultKafkaTopic
	return cfg
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot repair with defaults.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.Upstream.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("config: upstream url must be absolute")
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("config: max retries must not be negative")
	}
	if strings.TrimSpace(c.Storage.OutputDir) == "" {
		return errors.New("config: output dir required")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("config: kafka topic required when brokers are set")
	}
	return nil
}

// HTTPAddress returns :port style. A value already holding a host is used as is.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Timeout returns the per-request upstream timeout.
func (c *Config) Timeout() time.Duration {
	if c.Upstream.TimeoutSeconds <= 0 {
		return defaultTimeout * time.Second
	}
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// RetryPolicy returns the upstream retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	delay := time.Duration(c.Upstream.RetryDelaySeconds) * time.Second
	if delay < 0 {
		delay = 0
	}
	return retry.Fixed(c.Upstream.MaxRetries, delay)
}

// Operator returns the operator used for stations that carry none.
func (c *Config) Operator() string {
	if op := strings.TrimSpace(c.Upstream.DefaultOperator); op != "" {
		return op
	}
	return defaultOperator
}

// Duration returns how long continuous mode runs. Zero or less runs until shutdown.
func (c *Config) Duration() time.Duration {
	if c.Pipeline.DurationHours <= 0 {
		return 0
	}
	return time.Duration(c.Pipeline.DurationHours) * time.Hour
}

// Interval returns the time between run starts.
func (c *Config) Interval() time.Duration {
	if c.Pipeline.IntervalMinutes <= 0 {
		return defaultInterval * time.Minute
	}
	return time.Duration(c.Pipeline.IntervalMinutes) * time.Minute
}

// Files returns the table file names.
func (c *Config) Files() repository.Files {
	return repository.Files{
		Stations:    c.Storage.StationsFile,
		Utilization: c.Storage.UtilizationFile,
		Hourly:      c.Storage.HourlyFile,
	}
}

// StatusTTL returns how long cached station statuses live.
func (c *Config) StatusTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return defaultRedisTTL * time.Second
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// FeedWriteTimeout returns the websocket write deadline.
func (c *Config) FeedWriteTimeout() time.Duration {
	if c.HTTP.FeedWriteTimeoutSecs <= 0 {
		return defaultFeedDeadline * time.Second
	}
	return time.Duration(c.HTTP.FeedWriteTimeoutSecs) * time.Second
}

// ServerTimeouts returns the ops API read, write, idle and shutdown limits in that order.
func (c *Config) ServerTimeouts() (read, write, idle, shutdown time.Duration) {
	return seconds(c.HTTP.ReadTimeoutSecs, defaultReadTimeout),
		seconds(c.HTTP.WriteTimeoutSecs, defaultWriteTimeout),
		seconds(c.HTTP.IdleTimeoutSecs, defaultIdleTimeout),
		seconds(c.HTTP.ShutdownSecs, defaultShutdown)
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
