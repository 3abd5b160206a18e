package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"aristotle/internal/llm"
	"aristotle/internal/search"
	"aristotle/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	defaultCallTimeout = 2 * time.Minute
	defaultMaxTurns    = 8
)

type RuntimeOption func(*Runtime)

// WithCallTimeout bounds each model call. Expiry surfaces as a ProviderError.
func WithCallTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxTurns bounds the number of model calls a single run may make.
func WithMaxTurns(n int) RuntimeOption {
	return func(r *Runtime) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// Runtime binds a Config to a model backend and its capabilities.
type Runtime struct {
	config   *Config
	provider llm.Provider
	registry *Registry
	specs    []llm.ToolSpec
	timeout  time.Duration
	maxTurns int
}

func NewRuntime(cfg *Config, provider llm.Provider, registry *Registry, opts ...RuntimeOption) *Runtime {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Runtime{
		config:   cfg,
		provider: provider,
		registry: registry,
		timeout:  defaultCallTimeout,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, c := range registry.All() {
		schema, _ := c.InputSchema().(map[string]any)
		r.specs = append(r.specs, llm.ToolSpec{
			Name:        c.Name(),
			Description: c.Description(),
			Parameters:  schema,
		})
	}
	return r
}

func (r *Runtime) Name() string    { return r.config.Name() }
func (r *Runtime) Status() string  { return r.config.Status() }
func (r *Runtime) Config() *Config { return r.config }

// Run sends the topic prompt to the model and returns its complete reply.
// Tool calls requested by the model are executed between turns.
func (r *Runtime) Run(ctx context.Context, topic string) (*Response, error) {
	start := time.Now()
	ctx = ContextWithAgentName(ctx, r.config.Name())

	ctx, span := trace.Tracer().Start(ctx, "agent.run",
		oteltrace.WithAttributes(
			attribute.String("gen_ai.agent.name", r.config.Name()),
			attribute.String("gen_ai.agent.role", r.config.Role()),
			attribute.String("run.id", RunIDFromContext(ctx)),
			attribute.String("topic", truncate(topic, 200)),
		),
	)
	defer span.End()

	input := []llm.Item{llm.Message("user", Prompt(topic))}
	toolCalls := 0

	for turn := 0; turn < r.maxTurns; turn++ {
		reply, err := r.chat(ctx, turn, input)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if len(reply.Calls) == 0 {
			if reply.Text == "" {
				err := &ProviderError{Backend: "model", Err: errors.New("empty reply")}
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			resp := &Response{
				Agent:     r.config.Name(),
				Role:      r.config.Role(),
				Heading:   r.config.Heading(),
				Content:   reply.Text,
				Format:    r.config.Format(),
				Model:     reply.Model,
				ToolCalls: toolCalls,
				Elapsed:   time.Since(start),
				Raw:       reply.Raw,
			}
			span.SetAttributes(
				attribute.Int("agent.turns", turn+1),
				attribute.Int("agent.tool_calls", toolCalls),
				attribute.Int("agent.output_length", len(resp.Content)),
			)
			slog.Debug("agent run done", "agent", r.config.Name(), "turns", turn+1, "tool_calls", toolCalls, "elapsed", resp.Elapsed)
			return resp, nil
		}

		if reply.Text != "" {
			input = append(input, llm.Message("assistant", reply.Text))
		}
		for i := range reply.Calls {
			input = append(input, llm.Item{Call: &reply.Calls[i]})
		}

		results, err := r.act(ctx, reply.Calls)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		input = append(input, results...)
		toolCalls += len(reply.Calls)
	}

	err := &ProviderError{Backend: "model", Err: fmt.Errorf("no final reply after %d turns", r.maxTurns)}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (r *Runtime) chat(ctx context.Context, turn int, input []llm.Item) (*llm.Reply, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	callCtx, span := trace.Tracer().Start(callCtx, "llm.chat",
		oteltrace.WithAttributes(attribute.Int("llm.turn", turn)),
	)
	defer span.End()

	reply, err := r.provider.Chat(callCtx, llm.Request{
		Model:        r.config.Model(),
		Instructions: r.config.SystemPrompt(),
		Input:        input,
		Tools:        r.specs,
	})
	if err != nil {
		err = classifyModelError(ctx, callCtx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("llm.model", reply.Model),
		attribute.Int64("llm.input_tokens", reply.InputTokens),
		attribute.Int64("llm.output_tokens", reply.OutputTokens),
	)
	return reply, nil
}

func classifyModelError(parent, call context.Context, err error) error {
	switch {
	case errors.Is(err, llm.ErrUnauthorized):
		return &AuthError{Backend: "model", Err: err}
	case parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Backend: "model", Timeout: true, Err: err}
	default:
		return &ProviderError{Backend: "model", Err: err}
	}
}

// act executes one turn's tool calls in parallel and returns their results
// as conversation items. Under ToolBestEffort a failure becomes an error
// string the model can read; under ToolStrict the first failure aborts.
func (r *Runtime) act(ctx context.Context, calls []llm.ToolCall) ([]llm.Item, error) {
	var wg sync.WaitGroup
	results := make([]llm.Item, len(calls))
	errs := make([]error, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()

			output, err := r.execute(ctx, call)
			if err != nil {
				slog.Warn("tool execution failed", "agent", r.config.Name(), "tool", call.Name, "error", err)
				errs[i] = err
				output = "error: " + err.Error()
			}
			results[i] = llm.Item{Result: &llm.ToolResult{CallID: call.ID, Output: output}}
		}(i, call)
	}
	wg.Wait()

	if r.config.ToolPolicy() == ToolStrict {
		for i, err := range errs {
			if err != nil {
				return nil, classifyToolError(calls[i].Name, err)
			}
		}
	}
	return results, nil
}

func (r *Runtime) execute(ctx context.Context, call llm.ToolCall) (string, error) {
	c, ok := r.registry.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	if err := r.registry.Validate(call.Name, call.Arguments); err != nil {
		return "", err
	}
	return withTrace(c).Execute(ctx, call.Arguments)
}

func classifyToolError(tool string, err error) error {
	backend := "tool " + tool
	switch {
	case errors.Is(err, search.ErrUnauthorized):
		return &AuthError{Backend: backend, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Backend: backend, Timeout: true, Err: err}
	default:
		return &ProviderError{Backend: backend, Err: err}
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
