// Package config loads conference-insight settings from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/conference-insight/internal/insights"
	"github.com/joelkehle/conference-insight/internal/sessions"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Companies CompaniesConfig `yaml:"companies"`
	Report    ReportConfig    `yaml:"report"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// DefaultInstance is used by the MCP tools when a call omits instance_id.
	DefaultInstance int64 `yaml:"default_instance"`
	// CORSOrigins enables CORS for a browser dashboard; empty disables it.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic
	Model       string  `yaml:"model"`    // empty selects the provider's default
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

type CacheConfig struct {
	Backend   string `yaml:"backend"` // memory, redis, none
	TTL       string `yaml:"ttl"`
	RedisAddr string `yaml:"redis_addr"`
	Prefix    string `yaml:"prefix"`
}

type LoggingConfig struct {
	Mode  string `yaml:"mode"` // development, production
	Level string `yaml:"level"`
}

type CompaniesConfig struct {
	Cloud sessions.AliasTable `yaml:"cloud"`
	OEM   sessions.AliasTable `yaml:"oem"`
}

type ReportConfig struct {
	Columns    insights.Columns       `yaml:"columns"`
	Layout     insights.Layout        `yaml:"layout"`
	Anonymize  []insights.Replacement `yaml:"anonymize"`
	OutputDir  string                 `yaml:"output_dir"`
	Stylesheet string                 `yaml:"stylesheet"`
}

// ValidProviders lists the supported LLM providers.
var ValidProviders = []string{insights.ProviderOpenAI, insights.ProviderAnthropic}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/conference.db"},
		Server:   ServerConfig{Addr: ":8080"},
		LLM: LLMConfig{
			Provider:  insights.ProviderOpenAI,
			MaxTokens: 4096,
			Timeout:   "120s",
		},
		Cache:   CacheConfig{Backend: "memory", TTL: "5m", Prefix: "conference-insight:"},
		Logging: LoggingConfig{Mode: "development", Level: "info"},
		Companies: CompaniesConfig{
			Cloud: sessions.DefaultCloudAliases(),
			OEM:   sessions.DefaultOEMAliases(),
		},
		Report: ReportConfig{
			Columns:   insights.DefaultColumns(),
			Layout:    insights.DefaultLayout(),
			Anonymize: insights.DefaultReplacements(),
			OutputDir: "reports",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONFERENCE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CONFERENCE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case insights.ProviderAnthropic:
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		if c.Cache.Backend == "memory" {
			c.Cache.Backend = "redis"
		}
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		c.Logging.Mode = v
	}
}

// Validate checks everything except the LLM key, which only the commands
// that call a model require (see RequireLLM).
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Database.Path) == "" {
		problems = append(problems, "database.path is empty")
	}
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of %v", c.LLM.Provider, ValidProviders))
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			problems = append(problems, "cache.redis_addr is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q is not one of memory, redis, none", c.Cache.Backend))
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		problems = append(problems, fmt.Sprintf("cache.ttl: %v", err))
	}
	problems = append(problems, validateAliases("companies.cloud", c.Companies.Cloud)...)
	problems = append(problems, validateAliases("companies.oem", c.Companies.OEM)...)
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateAliases(name string, table sessions.AliasTable) []string {
	if len(table) == 0 {
		return []string{name + " is empty"}
	}
	var problems []string
	seen := map[string]struct{}{}
	for i, e := range table {
		canonical := strings.TrimSpace(e.Canonical)
		if canonical == "" {
			problems = append(problems, fmt.Sprintf("%s[%d] has no name", name, i))
			continue
		}
		if _, dup := seen[canonical]; dup {
			problems = append(problems, fmt.Sprintf("%s has duplicate name %q", name, canonical))
		}
		seen[canonical] = struct{}{}
		if len(e.Aliases) == 0 {
			problems = append(problems, fmt.Sprintf("%s %q has no aliases", name, canonical))
		}
	}
	return problems
}

// RequireLLM reports whether a model can be called with this config.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("LLM API key not configured (set llm.api_key, OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}
	return nil
}

// LLMSettings converts the llm section for insights.NewCaller.
func (c *Config) LLMSettings() insights.LLMSettings {
	return insights.LLMSettings{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
	}
}

func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
