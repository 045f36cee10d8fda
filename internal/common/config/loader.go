// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and expands ${VAR} placeholders from the environment.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // the overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Zero is a valid threshold, so its default cannot be applied after
	// unmarshalling.
	v.SetDefault("negotiation.match_threshold", 0.5)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // test/e2e
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that were left blank in yaml.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Oracle.APIKey == "" {
		var envKey string
		switch cfg.Oracle.Provider {
		case "anthropic":
			envKey = "ANTHROPIC_API_KEY"
		case "gemini":
			envKey = "GEMINI_API_KEY"
		default:
			envKey = "OPENAI_API_KEY"
		}
		if val := os.Getenv(envKey); val != "" {
			cfg.Oracle.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pcbuild-service"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 310000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = "openai"
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = defaultModel(cfg.Oracle.Provider)
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 60000
	}
	if cfg.Oracle.MaxTokens == 0 {
		cfg.Oracle.MaxTokens = 1024
	}

	if cfg.Negotiation.MaxAttempts == 0 {
		cfg.Negotiation.MaxAttempts = 20
	}
	if cfg.Negotiation.SimilarityMetric == "" {
		cfg.Negotiation.SimilarityMetric = "sorensen-dice"
	}
	if cfg.Negotiation.HistoryMode == "" {
		cfg.Negotiation.HistoryMode = "replace"
	}
	if cfg.Negotiation.Timeout == 0 {
		cfg.Negotiation.Timeout = 300000
	}
	if cfg.Negotiation.Currency == "" {
		cfg.Negotiation.Currency = "KZT"
	}
	if cfg.Negotiation.PriceField == "" {
		cfg.Negotiation.PriceField = "price"
	}
	if cfg.Negotiation.Tolerance.Policy == "" {
		cfg.Negotiation.Tolerance.Policy = "percent"
	}
	if cfg.Negotiation.Tolerance.Percent == 0 {
		cfg.Negotiation.Tolerance.Percent = 0.10
	}
	if cfg.Negotiation.Tolerance.Absolute == 0 {
		cfg.Negotiation.Tolerance.Absolute = 90000
	}

	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "file"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.sample.json"
	}
	if cfg.Catalog.Table == "" {
		cfg.Catalog.Table = "products"
	}
	if cfg.Catalog.Index == "" {
		cfg.Catalog.Index = "products"
	}
	if cfg.Catalog.CacheKey == "" {
		cfg.Catalog.CacheKey = "catalog:snapshot"
	}

	if cfg.Audit.Sink == "" {
		cfg.Audit.Sink = "none"
	}
	if cfg.Audit.Table == "" {
		cfg.Audit.Table = "unresolved_components"
	}
	if cfg.Audit.Key == "" {
		cfg.Audit.Key = "audit:unresolved"
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 256
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "configs/task-registry.json"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 300000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Oracle.Provider {
	case "openai", "anthropic", "gemini":
	case "openai_compatible":
		if cfg.Oracle.BaseURL == "" {
			return fmt.Errorf("oracle.base_url is required for provider openai_compatible")
		}
	default:
		return fmt.Errorf("oracle.provider %q is not supported", cfg.Oracle.Provider)
	}

	if cfg.Negotiation.MaxAttempts < 1 {
		return fmt.Errorf("negotiation.max_attempts must be at least 1")
	}
	if cfg.Negotiation.MatchThreshold < 0 || cfg.Negotiation.MatchThreshold > 1 {
		return fmt.Errorf("negotiation.match_threshold must be within [0, 1]")
	}
	switch cfg.Negotiation.PriceField {
	case "price", "effective":
	default:
		return fmt.Errorf("negotiation.price_field %q is not supported", cfg.Negotiation.PriceField)
	}
	switch cfg.Negotiation.HistoryMode {
	case "replace", "cumulative":
	default:
		return fmt.Errorf("negotiation.history_mode %q is not supported", cfg.Negotiation.HistoryMode)
	}
	switch cfg.Negotiation.Tolerance.Policy {
	case "percent":
		if cfg.Negotiation.Tolerance.Percent <= 0 || cfg.Negotiation.Tolerance.Percent >= 1 {
			return fmt.Errorf("negotiation.tolerance.percent must be within (0, 1)")
		}
	case "absolute":
		if cfg.Negotiation.Tolerance.Absolute <= 0 {
			return fmt.Errorf("negotiation.tolerance.absolute must be positive")
		}
	default:
		return fmt.Errorf("negotiation.tolerance.policy %q is not supported", cfg.Negotiation.Tolerance.Policy)
	}

	switch cfg.Catalog.Source {
	case "file":
		if cfg.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for source file")
		}
	case "postgres":
		if err := requirePostgres(cfg); err != nil {
			return err
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required")
		}
	default:
		return fmt.Errorf("catalog.source %q is not supported", cfg.Catalog.Source)
	}

	switch cfg.Audit.Sink {
	case "none":
	case "file", "sqlite":
		if cfg.Audit.Path == "" {
			return fmt.Errorf("audit.path is required for sink %s", cfg.Audit.Sink)
		}
	case "postgres":
		if err := requirePostgres(cfg); err != nil {
			return err
		}
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required")
		}
	default:
		return fmt.Errorf("audit.sink %q is not supported", cfg.Audit.Sink)
	}

	if cfg.Catalog.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when catalog.cache_ttl is set")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	return nil
}

func requirePostgres(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       300000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
