package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxTokens = 4096

type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic builds a provider for the Messages API. maxTokens <= 0 uses
// a default budget.
func NewAnthropic(baseURL, apiKey, model string, maxTokens int, extra ...option.RequestOption) *AnthropicProvider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	opts = append(opts, extra...)

	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (*Reply, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages:  toMessages(req.Input),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	for _, t := range req.Tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Parameters["properties"],
			},
		}
		if required, ok := t.Parameters["required"].([]string); ok {
			tool.InputSchema.Required = required
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropic(err)
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return nil, fmt.Errorf("anthropic: %w: max_tokens (%d) reached", ErrIncomplete, params.MaxTokens)
	}

	reply := &Reply{
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		Raw:          json.RawMessage(msg.RawJSON()),
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			reply.Calls = append(reply.Calls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.JSON.Input.Raw(),
			})
		}
	}
	reply.Text = text.String()
	return reply, nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("anthropic: %w: %w", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}

// toMessages folds items into alternating user/assistant messages. Tool
// calls belong to the assistant turn and their results to the next user turn.
func toMessages(items []Item) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	add := func(role anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			return
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{block},
		})
	}

	for _, it := range items {
		switch {
		case it.Call != nil:
			add(anthropic.MessageParamRoleAssistant, anthropic.NewToolUseBlock(it.Call.ID, json.RawMessage(it.Call.Arguments), it.Call.Name))
		case it.Result != nil:
			isError := strings.HasPrefix(it.Result.Output, "error: ")
			add(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(it.Result.CallID, it.Result.Output, isError))
		case it.Role == "assistant":
			add(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(it.Text))
		default:
			add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(it.Text))
		}
	}
	return out
}
