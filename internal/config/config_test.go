package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 8080},
		Database:   DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Search:     SearchConfig{APIKey: "search-key"},
		Classifier: ClassifierConfig{APIKey: "openai-key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Classifier.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `classifier.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Classifier.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "memcached" }, "database.driver"},
		{"missing addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"missing search key", func(c *Config) { c.Search.APIKey = "" }, "search.api_key"},
		{"page size too large", func(c *Config) { c.Search.PageSize = 5000 }, "search.page_size"},
		{"negative concurrency", func(c *Config) { c.Search.MaxConcurrency = -1 }, "search.max_concurrency"},
		{"missing classifier key", func(c *Config) { c.Classifier.APIKey = "" }, "classifier.api_key"},
		{"temperature", func(c *Config) { c.Classifier.Temperature = ptr(float32(3)) }, "classifier.temperature"},
		{"top_p", func(c *Config) { c.Classifier.TopP = ptr(float32(0)) }, "classifier.top_p"},
		{"locale", func(c *Config) { c.Analysis.Locale = "not a locale!" }, "analysis.locale"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error about %s, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateClient_IgnoresServerSettings(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	cfg.Database.Addrs = nil
	if err := cfg.ValidateClient(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.WriteTimeoutSec != 330 || cfg.HTTP.ShutdownSec != 30 {
		t.Errorf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Database.Driver != "redis" || cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Search.PageSize != 1000 || cfg.Search.TimeoutSec != 30 || cfg.Search.CacheTTLSec != 0 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Classifier.Model != "gpt-4.1-mini" || *cfg.Classifier.Temperature != 0.2 || *cfg.Classifier.TopP != 0.1 {
		t.Errorf("unexpected classifier defaults: %+v", cfg.Classifier)
	}
	if cfg.Analysis.TimeoutSec != 300 || cfg.Analysis.Tag().String() != "en" {
		t.Errorf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Storage.KeyPrefix != "stockmarks:" {
		t.Errorf("expected KeyPrefix='stockmarks:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database:   DatabaseConfig{Driver: "valkey", ReadinessTimeout: 15},
		Classifier: ClassifierConfig{Temperature: ptr(float32(0))},
		Storage:    StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected driver valkey, got %q", cfg.Database.Driver)
	}
	if *cfg.Classifier.Temperature != 0 {
		t.Errorf("explicit zero temperature overridden: %v", *cfg.Classifier.Temperature)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STOCKMARKS_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte(`a: ${STOCKMARKS_TEST_KEY}
b: ${STOCKMARKS_TEST_MISSING:-fallback}
c: "${STOCKMARKS_TEST_MISSING}"`)))

	want := `a: secret
b: fallback
c: ""`
	if got != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestLoadClient(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `search:
  api_key: ${STOCKMARKS_TEST_SEARCH_KEY}
  max_concurrency: 4
classifier:
  api_key: test
  budget:
    daily_token_limit: 5000
    action: reject
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("STOCKMARKS_TEST_SEARCH_KEY", "from-env")

	cfg, err := LoadClient("unittest")
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.Search.APIKey != "from-env" || cfg.Search.MaxConcurrency != 4 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Classifier.Budget.DailyTokenLimit != 5000 || cfg.Classifier.Budget.Action != "reject" {
		t.Errorf("unexpected budget: %+v", cfg.Classifier.Budget)
	}

	// the server entry point also needs http and database settings
	if _, err := Load("unittest"); err == nil {
		t.Error("expected Load to reject a config without http.port")
	}
}
