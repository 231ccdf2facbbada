package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragdex API configuration.
type Config struct {
	HTTP      HTTPConfig                `yaml:"http"`
	Redis     RedisConfig               `yaml:"redis"`
	Ledger    LedgerConfig              `yaml:"ledger"`
	Embedding EmbeddingConfig           `yaml:"embedding"`
	Search    SearchConfig              `yaml:"search"`
	Library   LibraryConfig             `yaml:"library"`
	Router    RouterConfig              `yaml:"router"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Auth      AuthConfig                `yaml:"auth"`
	Logging   LoggingConfig             `yaml:"logging"`
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

// RedisConfig holds Redis connection settings for the vector indexes and
// the embedding cache.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// LedgerConfig holds the usage ledger settings.
type LedgerConfig struct {
	Path string `yaml:"path"` // sqlite file path
}

// ProviderConfig holds one LLM vendor endpoint.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"` // key into providers
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // persisted vector cache TTL
}

// SearchConfig holds RAG search defaults and the two index names.
type SearchConfig struct {
	ProjectIndex        string   `yaml:"project_index"`
	LibraryIndex        string   `yaml:"library_index"`
	DefaultTopK         int      `yaml:"default_top_k"`
	LibraryRatio        float64  `yaml:"library_ratio"`
	UseHyde             *bool    `yaml:"use_hyde"`
	UseReranker         *bool    `yaml:"use_reranker"`
	UseCache            *bool    `yaml:"use_cache"`
	CacheTTLSec         int      `yaml:"cache_ttl_sec"`
	CacheSimilarity     float64  `yaml:"cache_similarity_threshold"`
	MaxContextChars     int      `yaml:"max_context_chars"`
	RerankSnippetChars  int      `yaml:"rerank_snippet_chars"`
	ExpansionTimeoutSec int      `yaml:"expansion_timeout_sec"`
}

// HydeEnabled reports whether HyDE expansion defaults to on.
func (s SearchConfig) HydeEnabled() bool { return s.UseHyde == nil || *s.UseHyde }

// RerankerEnabled reports whether LLM reranking defaults to on.
func (s SearchConfig) RerankerEnabled() bool { return s.UseReranker == nil || *s.UseReranker }

// CacheEnabled reports whether the semantic cache defaults to on.
func (s SearchConfig) CacheEnabled() bool { return s.UseCache == nil || *s.UseCache }

// CategoryConfig maps path patterns to a library category and its score boost.
type CategoryConfig struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Boost    float64  `yaml:"boost"`
}

// LibraryConfig holds shared knowledge-base settings.
type LibraryConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
}

// TaskConfig is the provider/model tuple for one task type.
type TaskConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// TaskOverride replaces parts of a task selection for a project type.
type TaskOverride struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ModelPricing holds per-1K-token prices in USD.
type ModelPricing struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// BudgetConfig holds monthly spend alerting thresholds.
type BudgetConfig struct {
	MonthlyLimitUSD float64 `yaml:"monthly_limit_usd"` // 0 = no budget checks
	AlertPercent    float64 `yaml:"alert_percent"`
	CriticalPercent float64 `yaml:"critical_percent"`
}

// RouterConfig holds model routing, pricing, and budget settings.
type RouterConfig struct {
	TaskTypes    map[string]TaskConfig              `yaml:"task_types"`
	ProjectTypes map[string]map[string]TaskOverride `yaml:"project_types"`
	Pricing      map[string]map[string]ModelPricing `yaml:"pricing"`
	Budget       BudgetConfig                       `yaml:"budget"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
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

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

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
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "ragdex.db"
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 5
	}
	if c.Search.LibraryRatio <= 0 || c.Search.LibraryRatio > 1 {
		c.Search.LibraryRatio = 0.3
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 3600
	}
	if c.Search.CacheSimilarity <= 0 || c.Search.CacheSimilarity > 1 {
		c.Search.CacheSimilarity = 0.95
	}
	if c.Search.MaxContextChars <= 0 {
		c.Search.MaxContextChars = 32000
	}
	if c.Search.RerankSnippetChars <= 0 {
		c.Search.RerankSnippetChars = 300
	}
	if c.Search.ExpansionTimeoutSec <= 0 {
		c.Search.ExpansionTimeoutSec = 20
	}
	if len(c.Library.Categories) == 0 {
		c.Library.Categories = DefaultCategories()
	}
	for i := range c.Library.Categories {
		if c.Library.Categories[i].Boost <= 0 {
			c.Library.Categories[i].Boost = 1.0
		}
	}
	if c.Router.Budget.AlertPercent <= 0 {
		c.Router.Budget.AlertPercent = 80
	}
	if c.Router.Budget.CriticalPercent <= 0 {
		c.Router.Budget.CriticalPercent = 95
	}
}

// DefaultCategories returns the built-in library category boost table.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "PMI", Patterns: []string{"pmi", "pmbok"}, Boost: 1.2},
		{Name: "AACE", Patterns: []string{"aace"}, Boost: 1.2},
		{Name: "ED_STO", Patterns: []string{"edsto", "ed_sto", "shutdown", "turnaround"}, Boost: 1.3},
		{Name: "DCMA", Patterns: []string{"dcma"}, Boost: 1.2},
		{Name: "Standards", Patterns: []string{"standard", "iso"}, Boost: 1.1},
		{Name: "Templates", Patterns: []string{"template"}, Boost: 0.9},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Search.ProjectIndex == "" {
		return fmt.Errorf("search.project_index is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			return fmt.Errorf("providers.%s.api_key is required", name)
		}
		if p.DefaultModel == "" {
			return fmt.Errorf("providers.%s.default_model is required", name)
		}
	}
	if c.Embedding.Provider == "" || c.Embedding.Model == "" {
		return fmt.Errorf("embedding.provider and embedding.model are required")
	}
	if _, ok := c.Providers[c.Embedding.Provider]; !ok {
		return fmt.Errorf("embedding.provider %q is not a configured provider", c.Embedding.Provider)
	}
	if _, ok := c.Router.TaskTypes["chat"]; !ok {
		return fmt.Errorf("router.task_types must define the \"chat\" fallback task")
	}
	for task, tc := range c.Router.TaskTypes {
		if tc.Provider == "" || tc.Model == "" {
			return fmt.Errorf("router.task_types.%s needs provider and model", task)
		}
	}
	if c.Router.Budget.CriticalPercent < c.Router.Budget.AlertPercent {
		return fmt.Errorf("router.budget.critical_percent must be >= alert_percent")
	}
	return nil
}

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
