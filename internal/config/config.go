package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config holds the stockmarks configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Bookmarks  BookmarksConfig  `yaml:"bookmarks"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds the product search client settings.
type SearchConfig struct {
	Endpoint       string `yaml:"endpoint"`
	AppID          string `yaml:"app_id"`
	APIKey         string `yaml:"api_key"`
	IndexName      string `yaml:"index_name"`
	Filters        string `yaml:"filters"`
	FacetFilters   string `yaml:"facet_filters"`
	Referrer       string `yaml:"referrer"`
	UserAgent      string `yaml:"user_agent"`
	PageSize       int    `yaml:"page_size"`
	MaxConcurrency int    `yaml:"max_concurrency"` // 0 = unbounded
	TimeoutSec     int    `yaml:"timeout_sec"`
	CacheTTLSec    int    `yaml:"cache_ttl_sec"` // 0 = no page cache
}

// ClassifierConfig holds the classification provider settings.
type ClassifierConfig struct {
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Temperature *float32     `yaml:"temperature"`
	TopP        *float32     `yaml:"top_p"`
	TimeoutSec  int          `yaml:"timeout_sec"`
	Budget      BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// AnalysisConfig holds analysis run settings.
type AnalysisConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	Locale     string `yaml:"locale"` // BCP 47 tag for title collation
}

// BookmarksConfig holds export settings.
type BookmarksConfig struct {
	LinkBaseURL string `yaml:"link_base_url"`
	FileName    string `yaml:"file_name"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads and validates the server configuration by environment name (local, prod).
func Load(env string) (Config, error) {
	cfg, err := read(env)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadClient reads the configuration for one-shot CLI runs, which need
// neither the HTTP server nor the database.
func LoadClient(env string) (Config, error) {
	cfg, err := read(env)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func read(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 330
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 1000
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 30
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gpt-4.1-mini"
	}
	if c.Classifier.Temperature == nil {
		c.Classifier.Temperature = ptr(float32(0.2))
	}
	if c.Classifier.TopP == nil {
		c.Classifier.TopP = ptr(float32(0.1))
	}
	if c.Classifier.TimeoutSec <= 0 {
		c.Classifier.TimeoutSec = 120
	}
	if c.Analysis.TimeoutSec <= 0 {
		c.Analysis.TimeoutSec = 300
	}
	if c.Analysis.Locale == "" {
		c.Analysis.Locale = "en"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "stockmarks:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	return c.ValidateClient()
}

// ValidateClient checks the settings needed by the search and classification
// clients alone (no HTTP server, no database).
func (c *Config) ValidateClient() error {
	if c.Search.APIKey == "" {
		return fmt.Errorf("search.api_key is required")
	}
	if c.Search.PageSize > 1000 {
		return fmt.Errorf("search.page_size must be at most 1000, got %d", c.Search.PageSize)
	}
	if c.Search.MaxConcurrency < 0 {
		return fmt.Errorf("search.max_concurrency must not be negative, got %d", c.Search.MaxConcurrency)
	}
	if c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key is required")
	}
	if t := c.Classifier.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("classifier.temperature must be between 0 and 2, got %v", *t)
	}
	if p := c.Classifier.TopP; p != nil && (*p <= 0 || *p > 1) {
		return fmt.Errorf("classifier.top_p must be in (0, 1], got %v", *p)
	}
	switch c.Classifier.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"classifier.budget.action must be \"warn\" or \"reject\", got %q",
			c.Classifier.Budget.Action,
		)
	}
	if _, err := language.Parse(c.Analysis.Locale); err != nil {
		return fmt.Errorf("analysis.locale %q: %w", c.Analysis.Locale, err)
	}
	return nil
}

// Tag returns the collation locale.
func (c AnalysisConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

func ptr[T any](v T) *T { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
