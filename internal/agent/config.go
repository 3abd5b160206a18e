package agent

import (
	"fmt"
	"slices"
	"strings"
)

type OutputFormat string

const (
	FormatPlain    OutputFormat = "plain"
	FormatMarkdown OutputFormat = "markdown"
)

// ToolPolicy decides what a failed tool call does to the run.
type ToolPolicy string

const (
	// ToolBestEffort reports the failure to the model and keeps going.
	ToolBestEffort ToolPolicy = "best_effort"
	// ToolStrict aborts the run with the tool's error.
	ToolStrict ToolPolicy = "strict"
)

// Config is the immutable description of one agent role.
type Config struct {
	name         string
	role         string
	description  string
	instructions []string
	tools        []string
	format       OutputFormat
	status       string
	heading      string
	model        string
	policy       ToolPolicy
}

type ConfigOption func(*Config)

// WithTools names the capabilities the agent may call.
func WithTools(names ...string) ConfigOption {
	return func(c *Config) { c.tools = append(c.tools, names...) }
}

func WithFormat(f OutputFormat) ConfigOption {
	return func(c *Config) { c.format = f }
}

// WithStatus sets the progress label shown while the agent runs.
func WithStatus(s string) ConfigOption {
	return func(c *Config) { c.status = s }
}

// WithHeading sets the title reports are rendered under. It defaults to the name.
func WithHeading(h string) ConfigOption {
	return func(c *Config) { c.heading = strings.TrimSpace(h) }
}

// WithModel overrides the provider's default model for this agent.
func WithModel(m string) ConfigOption {
	return func(c *Config) { c.model = m }
}

func WithToolPolicy(p ToolPolicy) ConfigOption {
	return func(c *Config) { c.policy = p }
}

func NewConfig(name, role, description string, instructions []string, opts ...ConfigOption) (*Config, error) {
	c := &Config{
		name:        strings.TrimSpace(name),
		role:        strings.TrimSpace(role),
		description: strings.TrimSpace(description),
		format:      FormatMarkdown,
		policy:      ToolBestEffort,
	}
	for _, ins := range instructions {
		if ins = strings.TrimSpace(ins); ins != "" {
			c.instructions = append(c.instructions, ins)
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.name == "" {
		return nil, &ConfigError{Field: "name", Reason: "must not be blank"}
	}
	if c.heading == "" {
		c.heading = c.name
	}
	if len(c.instructions) == 0 {
		return nil, &ConfigError{Agent: c.name, Field: "instructions", Reason: "at least one instruction is required"}
	}
	switch c.format {
	case FormatPlain, FormatMarkdown:
	default:
		return nil, &ConfigError{Agent: c.name, Field: "format", Reason: fmt.Sprintf("unknown output format %q", c.format)}
	}
	switch c.policy {
	case ToolBestEffort, ToolStrict:
	default:
		return nil, &ConfigError{Agent: c.name, Field: "tool_policy", Reason: fmt.Sprintf("unknown tool policy %q", c.policy)}
	}
	seen := make(map[string]bool, len(c.tools))
	for _, t := range c.tools {
		if seen[t] {
			return nil, &ConfigError{Agent: c.name, Field: "tools", Reason: fmt.Sprintf("duplicate tool %q", t)}
		}
		seen[t] = true
	}

	return c, nil
}

func (c *Config) Name() string           { return c.name }
func (c *Config) Role() string           { return c.role }
func (c *Config) Description() string    { return c.description }
func (c *Config) Instructions() []string { return slices.Clone(c.instructions) }
func (c *Config) Tools() []string        { return slices.Clone(c.tools) }
func (c *Config) Format() OutputFormat   { return c.format }
func (c *Config) Status() string         { return c.status }
func (c *Config) Heading() string        { return c.heading }
func (c *Config) Model() string          { return c.model }
func (c *Config) ToolPolicy() ToolPolicy { return c.policy }

// SystemPrompt renders the role, description and instructions sent to the
// model ahead of the user prompt.
func (c *Config) SystemPrompt() string {
	var b strings.Builder
	if c.description != "" {
		b.WriteString(c.description)
		b.WriteString("\n\n")
	}
	if c.role != "" {
		fmt.Fprintf(&b, "Your role: %s\n\n", c.role)
	}
	b.WriteString("## Instructions\n")
	for _, ins := range c.instructions {
		fmt.Fprintf(&b, "- %s\n", ins)
	}
	if c.format == FormatMarkdown {
		b.WriteString("- Use markdown to format your answers.\n")
	}
	return b.String()
}

// Prompt wraps a topic in the fixed user prompt template.
func Prompt(topic string) string {
	return "the topic is: " + topic
}
