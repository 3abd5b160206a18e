package agent

import (
	"fmt"

	"aristotle/internal/llm"
)

// RunnerFactory builds scoped runtimes from agent configs.
type RunnerFactory struct {
	provider       llm.Provider
	globalRegistry *Registry
	configs        []*Config
	runtimeOpts    []RuntimeOption
}

func NewRunnerFactory(provider llm.Provider, registry *Registry, configs []*Config, opts ...RuntimeOption) *RunnerFactory {
	return &RunnerFactory{
		provider:       provider,
		globalRegistry: registry,
		configs:        configs,
		runtimeOpts:    opts,
	}
}

// Build creates a Runtime for the named config with only its declared tools.
func (f *RunnerFactory) Build(name string) (*Runtime, error) {
	for _, cfg := range f.configs {
		if cfg.Name() == name {
			return f.build(cfg)
		}
	}
	return nil, fmt.Errorf("unknown agent: %s", name)
}

func (f *RunnerFactory) build(cfg *Config) (*Runtime, error) {
	registry, err := f.globalRegistry.Scope(cfg.Tools())
	if err != nil {
		return nil, &ConfigError{Agent: cfg.Name(), Field: "tools", Reason: err.Error()}
	}
	return NewRuntime(cfg, f.provider, registry, f.runtimeOpts...), nil
}

// Orchestrator builds every configured agent, in order, behind one Orchestrator.
func (f *RunnerFactory) Orchestrator(opts ...OrchestratorOption) (*Orchestrator, error) {
	runners := make([]Runner, 0, len(f.configs))
	for _, cfg := range f.configs {
		rt, err := f.build(cfg)
		if err != nil {
			return nil, err
		}
		runners = append(runners, rt)
	}
	return NewOrchestrator(runners, opts...)
}

// Agents returns the names of all configured agents in order.
func (f *RunnerFactory) Agents() []string {
	names := make([]string, 0, len(f.configs))
	for _, cfg := range f.configs {
		names = append(names, cfg.Name())
	}
	return names
}
