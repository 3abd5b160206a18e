package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnauthorized is returned (wrapped) when the backend rejects the credential.
var ErrUnauthorized = errors.New("llm: unauthorized")

// ErrIncomplete is returned (wrapped) when the backend stopped before finishing
// the reply, for example on hitting the output token limit.
var ErrIncomplete = errors.New("llm: reply incomplete")

// Item is one entry of the conversation sent to the model. Exactly one of
// Text (with Role), Call or Result is meaningful.
type Item struct {
	Role   string
	Text   string
	Call   *ToolCall
	Result *ToolResult
}

// Message builds a plain text item for the given role.
func Message(role, text string) Item {
	return Item{Role: role, Text: text}
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolResult struct {
	CallID string
	Output string
}

// ToolSpec describes a function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	Model        string // empty uses the provider default
	Instructions string
	Input        []Item
	Tools        []ToolSpec
}

type Reply struct {
	Model        string
	Text         string
	Calls        []ToolCall
	InputTokens  int64
	OutputTokens int64
	Raw          json.RawMessage
}

// Provider submits a request and blocks until the complete reply is available.
type Provider interface {
	Chat(ctx context.Context, req Request) (*Reply, error)
}
