package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

const envPrefix = "VETFLOW"

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	Postgres   PostgresSettings   `mapstructure:"postgres"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	JWT        JWTSettings        `mapstructure:"jwt"`
	GRPC       GRPCSettings       `mapstructure:"grpc"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	RateLimit  RateLimitSettings  `mapstructure:"rate_limit"`
	Argon2     Argon2Settings     `mapstructure:"argon2"`
	Password   PasswordSettings   `mapstructure:"password"`
	Pagination PaginationSettings `mapstructure:"pagination"`
	Denylist   DenylistSettings   `mapstructure:"denylist"`
	Storage    StorageSettings    `mapstructure:"storage"`
	CORS       CORSSettings       `mapstructure:"cors"`
	Seed       SeedSettings       `mapstructure:"seed"`
}

type AppSettings struct {
	Name      string `mapstructure:"name"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	PublicURL string `mapstructure:"public_url"`
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	StatementTimeout  time.Duration `mapstructure:"statement_timeout"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and key layout. URL, when set, takes precedence
// over the discrete connection fields.
type RedisSettings struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              int           `mapstructure:"db"`
	Password        string        `mapstructure:"password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	DenylistPrefix  string        `mapstructure:"denylist_prefix"`
	RateLimitPrefix string        `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the event producer and the revocation fan-out consumer.
// An empty broker list switches the service to the logging publisher.
type KafkaSettings struct {
	Brokers          []string `mapstructure:"brokers"`
	Version          string   `mapstructure:"version"`
	ClientID         string   `mapstructure:"client_id"`
	RequiredAcks     string   `mapstructure:"required_acks"`
	TopicPrefix      string   `mapstructure:"topic_prefix"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	RevocationFanout bool     `mapstructure:"revocation_fanout"`
}

// RateLimitSettings configures the per-IP auth windows and the global request throttle
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RefreshMaxAttempts  int           `mapstructure:"refresh_max_attempts"`
	GlobalRPS           float64       `mapstructure:"global_rps"`
	GlobalBurst         int           `mapstructure:"global_burst"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type PasswordSettings struct {
	MinLength int `mapstructure:"min_length"`
	MinScore  int `mapstructure:"min_score"`
}

type JWTSettings struct {
	KeyDirectory   string        `mapstructure:"key_directory"`
	ActiveKeyID    string        `mapstructure:"active_kid"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type PaginationSettings struct {
	DefaultPerPage int    `mapstructure:"default_per_page"`
	MaxPerPage     int    `mapstructure:"max_per_page"`
	CursorSecret   string `mapstructure:"cursor_secret"`
}

// DenylistSettings selects where invalidated token ids live: "redis" or "memory".
// Degradation is "strict" or "lenient" and applies when the backend cannot answer.
type DenylistSettings struct {
	Backend         string        `mapstructure:"backend"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Degradation     string        `mapstructure:"degradation"`
}

type StorageSettings struct {
	Root            string `mapstructure:"root"`
	PublicPath      string `mapstructure:"public_path"`
	AvatarMaxBytes  int64  `mapstructure:"avatar_max_bytes"`
	AvatarDimension int    `mapstructure:"avatar_dimension"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SeedSettings struct {
	CatalogPath        string `mapstructure:"catalog_path"`
	SuperAdminEmail    string `mapstructure:"superadmin_email"`
	SuperAdminPassword string `mapstructure:"superadmin_password"`
}

type TelemetrySettings struct {
	OTLPEndpoint  string        `mapstructure:"otlp_endpoint"`
	OTLPInsecure  bool          `mapstructure:"otlp_insecure"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
	ServiceName   string        `mapstructure:"service_name"`
	SamplingRate  float64       `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.log_level",
		"app.host",
		"app.port",
		"app.public_url",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.statement_timeout",
		"postgres.auto_migrate",
		"redis.url",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pool_size",
		"redis.min_idle_conns",
		"redis.dial_timeout",
		"redis.read_timeout",
		"redis.denylist_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.version",
		"kafka.client_id",
		"kafka.required_acks",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"kafka.revocation_fanout",
		"jwt.key_directory",
		"jwt.active_kid",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"telemetry.otlp_endpoint",
		"telemetry.otlp_insecure",
		"telemetry.export_timeout",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.refresh_max_attempts",
		"rate_limit.global_rps",
		"rate_limit.global_burst",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"password.min_length",
		"password.min_score",
		"pagination.default_per_page",
		"pagination.max_per_page",
		"pagination.cursor_secret",
		"denylist.backend",
		"denylist.cleanup_interval",
		"denylist.degradation",
		"storage.root",
		"storage.public_path",
		"storage.avatar_max_bytes",
		"storage.avatar_dimension",
		"cors.allowed_origins",
		"seed.catalog_path",
		"seed.superadmin_email",
		"seed.superadmin_password",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.Denylist.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown denylist backend %q", c.Denylist.Backend)
	}
	if _, ok := domain.ParseDegradationPolicyMode(c.Denylist.Degradation); !ok {
		return fmt.Errorf("config: unknown denylist degradation %q", c.Denylist.Degradation)
	}
	if c.App.Env == "production" && c.Pagination.CursorSecret == defaultCursorSecret {
		return fmt.Errorf("config: pagination.cursor_secret must be set in production")
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return fmt.Errorf("config: jwt.access_token_ttl must be positive")
	}
	return nil
}

const defaultCursorSecret = "vetflow-dev-cursor-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vetflow-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.public_url", "http://localhost:8080")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "vetflow")
	v.SetDefault("postgres.password", "vetflow_password")
	v.SetDefault("postgres.database", "vetflow")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.statement_timeout", "15s")
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.denylist_prefix", "vetflow:denylist")
	v.SetDefault("redis.rate_limit_prefix", "vetflow:rate_limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "vetflow-api")
	v.SetDefault("kafka.required_acks", "local")
	v.SetDefault("kafka.topic_prefix", "vetflow")
	v.SetDefault("kafka.consumer_group", "vetflow-api")
	v.SetDefault("kafka.revocation_fanout", false)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.active_kid", "")
	v.SetDefault("jwt.issuer", "vetflow")
	v.SetDefault("jwt.access_token_ttl", "60m")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.export_timeout", "10s")
	v.SetDefault("telemetry.service_name", "vetflow-api")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.refresh_max_attempts", 10)
	v.SetDefault("rate_limit.global_rps", 20.0)
	v.SetDefault("rate_limit.global_burst", 40)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.min_score", 1)

	v.SetDefault("pagination.default_per_page", 100)
	v.SetDefault("pagination.max_per_page", 100)
	v.SetDefault("pagination.cursor_secret", defaultCursorSecret)

	v.SetDefault("denylist.backend", "redis")
	v.SetDefault("denylist.cleanup_interval", "1m")
	v.SetDefault("denylist.degradation", "strict")

	v.SetDefault("storage.root", "./storage/public")
	v.SetDefault("storage.public_path", "/storage")
	v.SetDefault("storage.avatar_max_bytes", 2048*1024)
	v.SetDefault("storage.avatar_dimension", 512)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("seed.catalog_path", "config/catalog.yaml")
	v.SetDefault("seed.superadmin_email", "superadmin@vetflow.local")
	v.SetDefault("seed.superadmin_password", "")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
