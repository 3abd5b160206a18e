// Package app assembles orchestrators from configuration and per-request
// credentials.
package app

import (
	"fmt"
	"log/slog"

	"aristotle/internal/agent"
	"aristotle/internal/config"
	"aristotle/internal/db"
	"aristotle/internal/llm"
	"aristotle/internal/search"
	"aristotle/internal/tools"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/v3/option"
)

// Credentials are supplied per invocation and never stored.
type Credentials struct {
	ModelKey  string
	SearchKey string
}

// FromConfig returns the credentials held in cfg (file or environment).
func FromConfig(cfg *config.Config) Credentials {
	return Credentials{
		ModelKey:  cfg.LLM().APIKey,
		SearchKey: cfg.Search.APIKey,
	}
}

// Merge fills empty fields of c from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.ModelKey == "" {
		c.ModelKey = fallback.ModelKey
	}
	if c.SearchKey == "" {
		c.SearchKey = fallback.SearchKey
	}
	return c
}

type Option func(*Builder)

// WithDB enables the search response cache when the config asks for it.
func WithDB(d *db.DB) Option {
	return func(b *Builder) { b.db = d }
}

// WithSearchProvider replaces the configured search backend.
func WithSearchProvider(fn func(apiKey string) (search.Provider, error)) Option {
	return func(b *Builder) { b.newSearch = fn }
}

// WithLLMProvider replaces the configured model backend.
func WithLLMProvider(fn func(apiKey string) llm.Provider) Option {
	return func(b *Builder) { b.newLLM = fn }
}

// Builder turns a loaded config into orchestrators. It holds no credentials.
type Builder struct {
	cfg       *config.Config
	configs   []*agent.Config
	db        *db.DB
	newLLM    func(apiKey string) llm.Provider
	newSearch func(apiKey string) (search.Provider, error)
}

// NewBuilder validates every agent in cfg up front.
func NewBuilder(cfg *config.Config, opts ...Option) (*Builder, error) {
	configs, err := AgentConfigs(cfg.Agents)
	if err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, configs: configs}
	b.newLLM = b.llmProvider
	b.newSearch = b.searchProvider
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Agents returns the validated agent configs in presentation order.
func (b *Builder) Agents() []*agent.Config {
	return b.configs
}

// NeedsSearch reports whether any agent declares a capability.
func (b *Builder) NeedsSearch() bool {
	for _, c := range b.configs {
		if len(c.Tools()) > 0 {
			return true
		}
	}
	return false
}

// Missing lists the credentials the configured agents need but creds lacks.
func (b *Builder) Missing(creds Credentials) []string {
	var missing []string
	if creds.ModelKey == "" {
		missing = append(missing, "model API key")
	}
	if b.NeedsSearch() && creds.SearchKey == "" {
		missing = append(missing, "search API key")
	}
	return missing
}

// Build creates a fresh Orchestrator bound to creds.
func (b *Builder) Build(creds Credentials, opts ...agent.OrchestratorOption) (*agent.Orchestrator, error) {
	factory, err := b.factory(creds)
	if err != nil {
		return nil, err
	}
	if b.cfg.Orchestrator.Parallel {
		opts = append([]agent.OrchestratorOption{agent.WithParallel()}, opts...)
	}
	return factory.Orchestrator(opts...)
}

// Runner creates a Runtime for the single agent called name.
func (b *Builder) Runner(creds Credentials, name string) (*agent.Runtime, error) {
	factory, err := b.factory(creds)
	if err != nil {
		return nil, err
	}
	return factory.Build(name)
}

func (b *Builder) factory(creds Credentials) (*agent.RunnerFactory, error) {
	if missing := b.Missing(creds); len(missing) > 0 {
		return nil, &agent.CredentialsError{Missing: missing}
	}

	registry := agent.NewRegistry()
	if b.NeedsSearch() {
		provider, err := b.newSearch(creds.SearchKey)
		if err != nil {
			return nil, fmt.Errorf("creating search provider: %w", err)
		}
		registry.Register(tools.NewWebSearch(provider, b.cfg.Search.Count))
	}
	slog.Debug("app: building agents", "agents", len(b.configs), "tools", registry.Len())

	return agent.NewRunnerFactory(b.newLLM(creds.ModelKey), registry, b.configs,
		agent.WithCallTimeout(b.cfg.Orchestrator.CallTimeout),
		agent.WithMaxTurns(b.cfg.Orchestrator.MaxTurns),
	), nil
}

func (b *Builder) llmProvider(apiKey string) llm.Provider {
	l := b.cfg.LLM()
	if l.Type == config.LLMAnthropic {
		return llm.NewAnthropic(l.BaseURL, apiKey, l.Model, l.MaxTokens, anthropicopt.WithMaxRetries(l.MaxRetries))
	}
	return llm.NewOpenAI(l.BaseURL, apiKey, l.Model, openaiopt.WithMaxRetries(l.MaxRetries))
}

func (b *Builder) searchProvider(apiKey string) (search.Provider, error) {
	var (
		provider search.Provider
		err      error
	)
	switch b.cfg.Search.Provider {
	case config.SearchBrave:
		provider, err = search.NewBrave(apiKey, b.cfg.Search.Timeout)
	case config.SearchSerpAPI:
		provider = search.NewSerpAPI(apiKey, b.cfg.Search.Timeout)
	default:
		err = fmt.Errorf("unknown search provider %q", b.cfg.Search.Provider)
	}
	if err != nil {
		return nil, err
	}

	cache := b.cfg.Search.Cache
	if cache.Enabled {
		if b.db == nil {
			slog.Warn("search cache enabled but no database configured")
			return provider, nil
		}
		provider = search.NewCachedProvider(provider, b.db, cache.TTL, cache.MaxRows)
	}
	return provider, nil
}

// AgentConfigs converts file-form agents into validated agent configs.
// Markdown output is the default.
func AgentConfigs(in []config.AgentConfig) ([]*agent.Config, error) {
	out := make([]*agent.Config, 0, len(in))
	for _, a := range in {
		format := agent.FormatMarkdown
		if a.Markdown != nil && !*a.Markdown {
			format = agent.FormatPlain
		}
		opts := []agent.ConfigOption{
			agent.WithTools(a.Tools...),
			agent.WithFormat(format),
			agent.WithStatus(a.Status),
			agent.WithHeading(a.Heading),
			agent.WithModel(a.Model),
		}
		if a.ToolPolicy != "" {
			opts = append(opts, agent.WithToolPolicy(agent.ToolPolicy(a.ToolPolicy)))
		}
		cfg, err := agent.NewConfig(a.Name, a.Role, a.Description, a.Instructions, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
