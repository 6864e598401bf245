package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	HTTP          HTTPConfig          `yaml:"http"`
	Ranking       RankingConfig       `yaml:"ranking"`
	NATS          NATSConfig          `yaml:"nats"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DatabaseConfig holds the storage connection settings.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // postgres|pgx|sqlite
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"` // apply pending migrations on serve
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Address           string        `yaml:"address"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	RateLimit         float64       `yaml:"rate_limit"` // requests per second per IP; 0 disables
	RateBurst         int           `yaml:"rate_burst"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RankingConfig holds leaderboard presentation settings.
type RankingConfig struct {
	PageSize     int  `yaml:"page_size"`
	WidenKeyword bool `yaml:"widen_keyword"`
	RatingMask   int  `yaml:"rating_mask"`
}

// NATSConfig holds the player-update ingest settings. An empty URL disables ingest.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Subject  string `yaml:"subject"`
	NKeySeed string `yaml:"nkey_seed"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text

	// Traces are exported when either endpoint is set (host:port, no scheme).
	// OTLPEndpoint wins over TempoEndpoint.
	TempoEndpoint   string  `yaml:"tempo_endpoint"`
	TempoInsecure   bool    `yaml:"tempo_insecure"`
	TempoSampleRate float64 `yaml:"tempo_sample_rate"`
	OTLPEndpoint    string  `yaml:"otlp_endpoint"`
	OTLPTransport   string  `yaml:"otlp_transport"` // grpc|http
}

// TraceEndpoint returns the collector endpoint spans are exported to, or ""
// when tracing is disabled.
func (c ObservabilityConfig) TraceEndpoint() string {
	if c.OTLPEndpoint != "" {
		return c.OTLPEndpoint
	}
	return c.TempoEndpoint
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "postgres",
		},
		HTTP: HTTPConfig{
			Address:           ":3000",
			RateLimit:         10,
			RateBurst:         20,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Ranking: RankingConfig{
			PageSize:     20,
			WidenKeyword: true,
			RatingMask:   17000,
		},
		NATS: NATSConfig{
			Subject: "tacobot.player.updated",
		},
		Observability: ObservabilityConfig{
			ServiceName: "taco-rank",
			Environment: "production",
			LogLevel:    "info",
			LogFormat:   "json",

			TempoSampleRate: 0.1,
			OTLPTransport:   "grpc",
		},
	}
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return cfg, cfg.Validate()
}

// --- OVERRIDE WITH ENV VARS IF PRESENT ---
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_AUTO_MIGRATE"); v != "" {
		cfg.Database.AutoMigrate = v == "true"
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid HTTP_RATE_LIMIT value: %v", err)
		}
		cfg.HTTP.RateLimit = f
	}
	if v := os.Getenv("RANKING_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RANKING_PAGE_SIZE value: %v", err)
		}
		cfg.Ranking.PageSize = n
	}
	if v := os.Getenv("RANKING_WIDEN_KEYWORD"); v != "" {
		cfg.Ranking.WidenKeyword = v == "true"
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		cfg.NATS.Subject = v
	}
	if v := os.Getenv("NATS_NKEY_SEED"); v != "" {
		cfg.NATS.NKeySeed = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("TEMPO_ENDPOINT"); v != "" {
		cfg.Observability.TempoEndpoint = v
	}
	if v := os.Getenv("TEMPO_INSECURE"); v != "" {
		cfg.Observability.TempoInsecure = v == "true"
	}
	if v := os.Getenv("TEMPO_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPO_SAMPLE_RATE value: %v", err)
		}
		cfg.Observability.TempoSampleRate = f
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Observability.OTLPEndpoint = v
	}
	if v := os.Getenv("OTLP_TRANSPORT"); v != "" {
		cfg.Observability.OTLPTransport = v
	}
	return nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Ranking.PageSize <= 0 {
		return fmt.Errorf("ranking.page_size must be positive, got %d", c.Ranking.PageSize)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	switch c.Observability.OTLPTransport {
	case "grpc", "http":
	default:
		return fmt.Errorf("unsupported otlp transport %q", c.Observability.OTLPTransport)
	}
	if r := c.Observability.TempoSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.tempo_sample_rate must be within [0, 1], got %v", r)
	}
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
