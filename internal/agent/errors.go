package agent

import (
	"fmt"
	"strings"
)

// ConfigError reports a malformed agent or orchestrator configuration.
type ConfigError struct {
	Agent  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Agent == "" {
		return fmt.Sprintf("invalid agent config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid agent config %q: %s: %s", e.Agent, e.Field, e.Reason)
}

type EmptyTopicError struct{}

func (*EmptyTopicError) Error() string { return "topic is required" }

// ErrEmptyTopic is returned by RunAll before any agent is invoked.
var ErrEmptyTopic error = &EmptyTopicError{}

// AuthError means a model or tool backend rejected its credential.
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError means a backend faulted or did not answer in time.
type ProviderError struct {
	Backend string
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AgentError labels a run failure with the agent that produced it.
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %q: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// CredentialsError lists credentials that must be supplied before a run.
type CredentialsError struct {
	Missing []string
}

func (e *CredentialsError) Error() string {
	return "missing credentials: " + strings.Join(e.Missing, ", ")
}
