package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing services
	Tier Tier `json:"tier"`

	// Component configurations
	Store    StoreConfig    `json:"store"`
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`

	// Profiling behaviour
	Profiler  ProfilerConfig  `json:"profiler"`
	Validator ValidatorConfig `json:"validator"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ProfilerConfig holds thresholds for profile generation and blending.
// These are injected into constructors so tests can vary them freely.
type ProfilerConfig struct {
	// WindowDays is the historical window a batch is expected to cover.
	WindowDays int `json:"windowDays"`

	// MinTransactions is the sample size below which generation warns.
	MinTransactions int `json:"minTransactions"`

	// OutlierPercentile caps amounts before amount statistics are computed.
	OutlierPercentile float64 `json:"outlierPercentile"`

	// BlendFactor is the default weight given to new data on refresh.
	BlendFactor float64 `json:"blendFactor"`
}

// ValidatorConfig holds validation thresholds and custom warning checks.
type ValidatorConfig struct {
	// MaxDriftPercent is the weekly change beyond which a metric warns.
	MaxDriftPercent float64 `json:"maxDriftPercent"`

	// MinTransactionCount warns below this sample size.
	MinTransactionCount int64 `json:"minTransactionCount"`

	// MaxFraudRate warns above this baseline rate.
	MaxFraudRate float64 `json:"maxFraudRate"`

	// MaxMedianAmount warns above this median (suspiciously large corridor).
	MaxMedianAmount float64 `json:"maxMedianAmount"`

	// MaxMedianVelocity warns above this txns/day median.
	MaxMedianVelocity float64 `json:"maxMedianVelocity"`

	// CustomChecks are operator-defined CEL warning expressions.
	CustomChecks []CheckConfig `json:"customChecks,omitempty"`
}

// CheckConfig is one operator-defined warning check. Expression is a CEL
// boolean assertion over profile fields; when it evaluates false the Message
// is emitted as a warning.
type CheckConfig struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the single-node tier with SQLite + channels.
	TierCommunity Tier = "community"

	// TierPro is the distributed tier with PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Profiler: ProfilerConfig{
			WindowDays:        28,
			MinTransactions:   1000,
			OutlierPercentile: 99.5,
			BlendFactor:       0.3,
		},
		Validator: ValidatorConfig{
			MaxDriftPercent:     25.0,
			MinTransactionCount: 100,
			MaxFraudRate:        0.10,
			MaxMedianAmount:     100000,
			MaxMedianVelocity:   50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Store = StoreConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
