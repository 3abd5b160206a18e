package agent

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventAgentStart EventType = "agent_start"
	EventAgentDone  EventType = "agent_done"
	EventAgentError EventType = "agent_error"
)

// Event reports orchestration progress to presenters.
type Event struct {
	Type     EventType `json:"type"`
	Agent    string    `json:"agent"`
	Status   string    `json:"status,omitempty"`
	Response *Response `json:"response,omitempty"`
	Err      error     `json:"-"`
}

// Runner produces one report for a topic.
type Runner interface {
	Name() string
	Run(ctx context.Context, topic string) (*Response, error)
}

// StatusReporter is implemented by runners that carry a progress label.
// The orchestrator checks for it via type assertion.
type StatusReporter interface {
	Status() string
}

// Response is the complete reply of one agent.
type Response struct {
	Agent     string          `json:"agent"`
	Role      string          `json:"role,omitempty"`
	Heading   string          `json:"heading,omitempty"`
	Content   string          `json:"content"`
	Format    OutputFormat    `json:"format"`
	Model     string          `json:"model,omitempty"`
	ToolCalls int             `json:"tool_calls"`
	Elapsed   time.Duration   `json:"elapsed"`
	Raw       json.RawMessage `json:"-"`
}

// Title is the heading the response is presented under.
func (r *Response) Title() string {
	if r.Heading != "" {
		return r.Heading
	}
	return r.Agent
}
