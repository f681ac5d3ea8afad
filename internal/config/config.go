package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Stream sources
const (
	SourceWebsocket = "websocket"
	SourceSQS       = "sqs"
	SourceKafka     = "kafka"
)

// Queue overflow policies
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop-oldest"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var (
	ErrInvalidSource   = errors.New("invalid stream source")
	ErrInvalidOverflow = errors.New("invalid queue overflow policy")
	ErrInvalidCache    = errors.New("invalid cache backend")
)

// Config groups settings per concern. The groups are embedded so every
// key is read by its full name only.
type Config struct {
	Service
	Stream
	SQS
	Kafka
	ClickHouse
	Meetup
	Consumer
	Cache
}

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"SERVICE_LOG_LEVEL"`
}

type Stream struct {
	Source         string        `envconfig:"STREAM_SOURCE" default:"websocket"`
	WebsocketURL   string        `envconfig:"STREAM_WEBSOCKET_URL" default:"ws://stream.meetup.com/2/rsvps"`
	ReconnectDelay time.Duration `envconfig:"STREAM_RECONNECT_DELAY" default:"5s"`
}

type SQS struct {
	Region          string `envconfig:"SQS_REGION" default:"eu-central-1"`
	Endpoint        string `envconfig:"SQS_ENDPOINT"`
	QueueURL        string `envconfig:"SQS_QUEUE_URL"`
	MaxMessages     int32  `envconfig:"SQS_MAX_MESSAGES" default:"10"`
	WaitTimeSeconds int32  `envconfig:"SQS_WAIT_TIME_SECONDS" default:"20"`
}

type Kafka struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"meetup-rsvps"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"rsvp-consumer"`
}

type ClickHouse struct {
	Host            string        `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string        `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string        `envconfig:"CLICKHOUSE_DB" default:"default"`
	User            string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password        string        `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool          `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	Table           string        `envconfig:"CLICKHOUSE_TABLE" default:"event_rsvp"`
	MaxOpenConns    int           `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME" default:"1h"`
}

type Meetup struct {
	APIKey          string        `envconfig:"MEETUP_API_KEY" required:"true"`
	BaseURL         string        `envconfig:"MEETUP_BASE_URL" default:"https://api.meetup.com"`
	EventsPath      string        `envconfig:"MEETUP_EVENTS_PATH" default:"/2/events"`
	MaxRequests     int           `envconfig:"MEETUP_MAX_REQUESTS" default:"30"`
	Period          time.Duration `envconfig:"MEETUP_PERIOD" default:"10s"`
	Timeout         time.Duration `envconfig:"MEETUP_TIMEOUT" default:"15s"`
	BreakerFailures int           `envconfig:"MEETUP_BREAKER_FAILURES" default:"0"`
	BreakerTimeout  time.Duration `envconfig:"MEETUP_BREAKER_TIMEOUT" default:"30s"`
}

type Consumer struct {
	BatchSize        int    `envconfig:"CONSUMER_BATCH_SIZE" default:"10"`
	QueueSize        int    `envconfig:"CONSUMER_QUEUE_SIZE" default:"1000"`
	OverflowPolicy   string `envconfig:"CONSUMER_OVERFLOW_POLICY" default:"block"`
	HealthCheckPort  string `envconfig:"CONSUMER_HEALTH_CHECK_PORT" default:"8081"`
	FlushOnShutdown  bool   `envconfig:"CONSUMER_FLUSH_ON_SHUTDOWN" default:"false"`
	MaxReceiveErrors int    `envconfig:"CONSUMER_MAX_RECEIVE_ERRORS" default:"0"`
}

type Cache struct {
	Backend       string        `envconfig:"CACHE_BACKEND" default:"memory"`
	RedisAddr     string        `envconfig:"CACHE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"CACHE_REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"CACHE_REDIS_DB" default:"0"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"24h"`
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enum values and the settings each stream source needs
func (c *Config) Validate() error {
	c.Stream.Source = strings.ToLower(c.Stream.Source)
	switch c.Stream.Source {
	case SourceWebsocket:
		if c.Stream.WebsocketURL == "" {
			return fmt.Errorf("%w: STREAM_WEBSOCKET_URL is required", ErrInvalidSource)
		}
	case SourceSQS:
		if c.SQS.QueueURL == "" {
			return fmt.Errorf("%w: SQS_QUEUE_URL is required", ErrInvalidSource)
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: KAFKA_BROKERS is required", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, c.Stream.Source)
	}

	switch c.Consumer.OverflowPolicy {
	case OverflowBlock, OverflowDropOldest:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOverflow, c.Consumer.OverflowPolicy)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCache, c.Cache.Backend)
	}

	if c.Consumer.BatchSize <= 0 {
		return fmt.Errorf("CONSUMER_BATCH_SIZE must be positive, got %d", c.Consumer.BatchSize)
	}
	if c.Consumer.MaxReceiveErrors < 0 {
		return fmt.Errorf("CONSUMER_MAX_RECEIVE_ERRORS must not be negative, got %d", c.Consumer.MaxReceiveErrors)
	}
	if c.Meetup.MaxRequests <= 0 || c.Meetup.Period <= 0 {
		return fmt.Errorf("MEETUP_MAX_REQUESTS and MEETUP_PERIOD must be positive")
	}

	return nil
}
