// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Server      ServerConfig            `mapstructure:"server"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Oracle      OracleConfig            `mapstructure:"oracle"`
	Negotiation NegotiationConfig       `mapstructure:"negotiation"`
	Catalog     CatalogConfig           `mapstructure:"catalog"`
	Audit       AuditConfig             `mapstructure:"audit"`
	Registry    RegistryConfig          `mapstructure:"registry"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	Logging     LoggingConfig           `mapstructure:"logging"`
	Tracing     TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration Sections ---

// OracleConfig selects the text-generation backend.
type OracleConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, openai_compatible, anthropic, gemini
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"` // SDK-level retries on 429/5xx
}

// NegotiationConfig drives the build negotiation loop.
type NegotiationConfig struct {
	MaxAttempts        int                 `mapstructure:"max_attempts"`
	MatchThreshold     float64             `mapstructure:"match_threshold"`
	SimilarityMetric   string              `mapstructure:"similarity_metric"`
	RestrictToCategory bool                `mapstructure:"restrict_to_category"`
	CategoryKeywords   map[string][]string `mapstructure:"category_keywords"`
	HistoryMode        string              `mapstructure:"history_mode"` // replace, cumulative
	Timeout            int                 `mapstructure:"timeout"`      // milliseconds
	Currency           string              `mapstructure:"currency"`
	PriceField         string              `mapstructure:"price_field"` // price, effective
	Tolerance          ToleranceConfig     `mapstructure:"tolerance"`
}

// ToleranceConfig picks exactly one budget policy.
type ToleranceConfig struct {
	Policy   string  `mapstructure:"policy"` // percent, absolute
	Percent  float64 `mapstructure:"percent"`
	Absolute int64   `mapstructure:"absolute"`
}

// CatalogConfig says where products are loaded from at startup.
type CatalogConfig struct {
	Source   string `mapstructure:"source"` // file, postgres, elasticsearch
	Path     string `mapstructure:"path"`
	Table    string `mapstructure:"table"`
	Index    string `mapstructure:"index"`
	CacheKey string `mapstructure:"cache_key"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables the redis snapshot
}

// AuditConfig selects where unresolved components are recorded.
type AuditConfig struct {
	Sink     string `mapstructure:"sink"` // none, file, postgres, sqlite, redis
	Path     string `mapstructure:"path"`
	Table    string `mapstructure:"table"`
	Key      string `mapstructure:"key"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	MaxLen   int64  `mapstructure:"max_len"`

	// QueueSize bounds the records waiting for the background writer.
	QueueSize int `mapstructure:"queue_size"`
}

// RegistryConfig points at the task registry used to validate job inputs.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export when an endpoint is set.
type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
