package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aristotle/internal/trace"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DefaultLLM   string                    `toml:"default_llm"`
	LLMs         map[string]*LLMConfig     `toml:"llm"`
	Search       SearchConfig              `toml:"search"`
	Orchestrator OrchestratorConfig        `toml:"orchestrator"`
	Gateway      GatewayConfig             `toml:"gateway"`
	Channels     map[string]*ChannelConfig `toml:"channel"`
	DB           DBConfig                  `toml:"db"`
	Trace        trace.Config              `toml:"trace"`
	Agents       []AgentConfig             `toml:"agent"`
}

type LLMConfig struct {
	Type       string `toml:"type"` // openai (default) or anthropic
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	MaxRetries int    `toml:"max_retries"`
	MaxTokens  int    `toml:"max_tokens"`
}

type SearchConfig struct {
	Provider string        `toml:"provider"` // serpapi or brave
	APIKey   string        `toml:"api_key"`
	Count    int           `toml:"count"`
	Timeout  time.Duration `toml:"timeout"`
	Cache    CacheConfig   `toml:"cache"`
}

type CacheConfig struct {
	Enabled bool          `toml:"enabled"`
	TTL     time.Duration `toml:"ttl"`
	MaxRows int           `toml:"max_rows"`
}

type OrchestratorConfig struct {
	Parallel    bool          `toml:"parallel"`
	CallTimeout time.Duration `toml:"call_timeout"`
	MaxTurns    int           `toml:"max_turns"`
}

type GatewayConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

type ChannelConfig struct {
	Enabled  bool              `toml:"enabled"`
	Type     string            `toml:"type"`
	Settings map[string]string `toml:"settings"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

// AgentConfig is the file form of one agent role.
type AgentConfig struct {
	Name         string   `toml:"name"`
	Role         string   `toml:"role"`
	Description  string   `toml:"description"`
	Instructions []string `toml:"instructions"`
	Tools        []string `toml:"tools"`
	Markdown     *bool    `toml:"markdown"`
	Status       string   `toml:"status"`
	Heading      string   `toml:"heading"`
	Model        string   `toml:"model"`
	ToolPolicy   string   `toml:"tool_policy"`
}

const (
	LLMOpenAI    = "openai"
	LLMAnthropic = "anthropic"

	SearchSerpAPI = "serpapi"
	SearchBrave   = "brave"
)

// Load reads path (or the default location when path is empty) over the
// built-in defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DefaultLLM: "openai",
		LLMs: map[string]*LLMConfig{
			"openai": {
				Type:  LLMOpenAI,
				Model: "gpt-4o-mini",
			},
		},
		Search: SearchConfig{
			Provider: SearchSerpAPI,
			Count:    5,
			Timeout:  30 * time.Second,
			Cache: CacheConfig{
				TTL:     24 * time.Hour,
				MaxRows: 10000,
			},
		},
		Orchestrator: OrchestratorConfig{
			CallTimeout: 2 * time.Minute,
			MaxTurns:    8,
		},
		Gateway: GatewayConfig{
			Addr: ":8484",
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
	}

	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	} else if explicit {
		return nil, err
	}

	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills credentials left empty in the file from the environment.
func (c *Config) applyEnv() {
	for _, llm := range c.LLMs {
		if llm.Type == "" {
			llm.Type = LLMOpenAI
		}
	}
	if llm, ok := c.LLMs[c.DefaultLLM]; ok && llm.APIKey == "" {
		switch llm.Type {
		case LLMOpenAI:
			llm.APIKey = os.Getenv("OPENAI_API_KEY")
		case LLMAnthropic:
			llm.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if c.Search.APIKey == "" {
		switch c.Search.Provider {
		case SearchSerpAPI:
			c.Search.APIKey = os.Getenv("SERPAPI_API_KEY")
		case SearchBrave:
			c.Search.APIKey = os.Getenv("BRAVE_API_KEY")
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if _, ok := c.LLMs[c.DefaultLLM]; !ok {
		errs = append(errs, fmt.Errorf("default LLM %q not found in config", c.DefaultLLM))
	}
	for name, llm := range c.LLMs {
		switch llm.Type {
		case LLMOpenAI, LLMAnthropic:
		default:
			errs = append(errs, fmt.Errorf("llm %q: unknown type %q", name, llm.Type))
		}
	}
	switch c.Search.Provider {
	case SearchSerpAPI, SearchBrave:
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q", c.Search.Provider))
	}
	return errors.Join(errs...)
}

// LLM returns the default model backend settings.
func (c *Config) LLM() *LLMConfig {
	return c.LLMs[c.DefaultLLM]
}

// NeedsSearch reports whether any configured agent declares a tool.
func (c *Config) NeedsSearch() bool {
	for _, a := range c.Agents {
		if len(a.Tools) > 0 {
			return true
		}
	}
	return false
}

func configPath() string {
	if p := os.Getenv("ARISTOTLE_CONFIG"); p != "" {
		return p
	}
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "aristotle", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "aristotle", "aristotle.db")
}
