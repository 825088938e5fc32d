package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// DefaultMaxReapplications is the number of times a rejected student may
// re-enter the workflow. The counter blocks once it reaches this value.
const DefaultMaxReapplications = 2

// DefaultSessionTTL bounds both the upload session and every URL issued for it.
const DefaultSessionTTL = 25 * time.Minute

type Config struct {
	Env        string           `mapstructure:"env"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Events     EventsConfig     `mapstructure:"events"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeout int    `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int    `mapstructure:"idle_timeout_seconds"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig selects the blob backend. Provider is "s3" or "oss".
type StorageConfig struct {
	Provider       string `mapstructure:"provider"`
	Container      string `mapstructure:"container"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	SecurityToken  string `mapstructure:"security_token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SubmissionConfig struct {
	SessionTTLMinutes           int `mapstructure:"session_ttl_minutes"`
	MaxReapplications           int `mapstructure:"max_reapplications"`
	SessionPurgeIntervalSeconds int `mapstructure:"session_purge_interval_seconds"`
}

// EventsConfig selects where submission events go. Backend is "nats", "kafka" or "none".
type EventsConfig struct {
	Backend      string   `mapstructure:"backend"`
	NATSURL      string   `mapstructure:"nats_url"`
	Subject      string   `mapstructure:"subject"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type GrpcConfig struct {
	Port string `mapstructure:"port"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // IDE from cmd/

	setDefaults(v)

	// Config file is optional - ENV variables still apply
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("No config file found (will use ENV variables): %v\n", err)
	}

	v.AutomaticEnv()

	_ = v.BindEnv("env", "ENV")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("storage.provider", "STORAGE_PROVIDER")
	_ = v.BindEnv("storage.container", "STORAGE_CONTAINER")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("storage.security_token", "STORAGE_SECURITY_TOKEN")
	_ = v.BindEnv("events.nats_url", "NATS_URL")
	_ = v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Env == "" {
		config.Env = env
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "registration")
	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.timeout_seconds", 5)
	v.SetDefault("submission.session_ttl_minutes", int(DefaultSessionTTL/time.Minute))
	v.SetDefault("submission.max_reapplications", DefaultMaxReapplications)
	v.SetDefault("submission.session_purge_interval_seconds", 0)
	v.SetDefault("events.backend", "none")
	v.SetDefault("events.subject", "registration.applications")
	v.SetDefault("events.kafka_topic", "registration.applications")
	v.SetDefault("grpc.port", "9090")
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Storage.Container == "" {
		return fmt.Errorf("storage.container is required")
	}
	if c.Submission.MaxReapplications < 0 {
		return fmt.Errorf("submission.max_reapplications must be >= 0")
	}
	if c.Submission.SessionTTLMinutes <= 0 {
		return fmt.Errorf("submission.session_ttl_minutes must be > 0")
	}
	return nil
}

// SessionTTL returns the configured upload session lifetime.
func (c SubmissionConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c SubmissionConfig) PurgeInterval() time.Duration {
	return time.Duration(c.SessionPurgeIntervalSeconds) * time.Second
}

func (c StorageConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
