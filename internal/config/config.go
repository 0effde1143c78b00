package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Run     RunConfig     `yaml:"run"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

type LLMConfig struct {
	// Provider chooses the model collaborator: ollama, claude, or openai.
	Provider  string                    `yaml:"provider,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type RunConfig struct {
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	Retries          int           `yaml:"retries,omitempty"`
	ModelConcurrency int           `yaml:"model_concurrency,omitempty"`

	// Generation options forwarded to the model collaborator.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p,omitempty"`
	NumCtx      int     `yaml:"num_ctx,omitempty"`
	Seed        int64   `yaml:"seed,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "jsonl" or "sqlite"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type ServerConfig struct {
	Addr       string `yaml:"addr,omitempty"`
	ReportsDir string `yaml:"reports_dir,omitempty"`
	GapsDir    string `yaml:"gaps_dir,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "ollama",
			Providers: make(map[string]ProviderConfig),
		},
		Run: RunConfig{
			Timeout:          10 * time.Minute,
			Retries:          2,
			ModelConcurrency: 1,
			TopP:             1.0,
			NumCtx:           4096,
		},
		Storage: StorageConfig{Type: "jsonl"},
		Server: ServerConfig{
			Addr:       ":8080",
			ReportsDir: "reports",
			GapsDir:    "reports",
		},
	}
}

// Load reads the YAML config at path and applies env-var overrides. When the
// default path does not exist the built-in defaults are returned, so the CLI
// works with flags alone; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != "" && strings.TrimSpace(path) != DefaultPath
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.Provider) == "" {
		cfg.LLM.Provider = "ollama"
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
		p := cfg.LLM.Providers["ollama"]
		p.BaseURL = v
		cfg.LLM.Providers["ollama"] = p
	}
}
