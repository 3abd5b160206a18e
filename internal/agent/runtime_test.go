package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"aristotle/internal/llm"
	"aristotle/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers each Chat call with reply(n, req) where n counts calls.
type stubProvider struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    func(n int, req llm.Request) (*llm.Reply, error)
}

func (s *stubProvider) Chat(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.reply(n, req)
}

func textReply(text string) func(int, llm.Request) (*llm.Reply, error) {
	return func(int, llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Model: "stub-model", Text: text, Raw: []byte(`{"id":"resp"}`)}, nil
	}
}

// searchThenAnswer asks for one web_search call, then answers with text.
func searchThenAnswer(text string) func(int, llm.Request) (*llm.Reply, error) {
	return func(n int, req llm.Request) (*llm.Reply, error) {
		if n == 0 {
			return &llm.Reply{Calls: []llm.ToolCall{{ID: "call_1", Name: "web_search", Arguments: `{"query":"go","count":3}`}}}, nil
		}
		return &llm.Reply{Model: "stub-model", Text: text}, nil
	}
}

func mustConfig(t *testing.T, name string, opts ...ConfigOption) *Config {
	t.Helper()
	cfg, err := NewConfig(name, "Role of "+name, "Description of "+name, []string{"Do the thing"}, opts...)
	require.NoError(t, err)
	return cfg
}

func registryWith(caps ...Capability) *Registry {
	r := NewRegistry()
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

func TestRuntime_Run(t *testing.T) {
	cfg := mustConfig(t, "Academic Advisor")
	p := &stubProvider{reply: textReply("# Roadmap")}
	rt := NewRuntime(cfg, p, nil)

	resp, err := rt.Run(context.Background(), "Machine Learning")
	require.NoError(t, err)

	assert.Equal(t, "Academic Advisor", resp.Agent)
	assert.Equal(t, "Role of Academic Advisor", resp.Role)
	assert.Equal(t, "# Roadmap", resp.Content)
	assert.Equal(t, FormatMarkdown, resp.Format)
	assert.Equal(t, "stub-model", resp.Model)
	assert.JSONEq(t, `{"id":"resp"}`, string(resp.Raw))
	assert.Zero(t, resp.ToolCalls)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Equal(t, cfg.SystemPrompt(), req.Instructions)
	assert.Equal(t, []llm.Item{llm.Message("user", "the topic is: Machine Learning")}, req.Input)
	assert.Empty(t, req.Tools)
}

func TestRuntime_RunIsDeterministic(t *testing.T) {
	rt := NewRuntime(mustConfig(t, "a"), &stubProvider{reply: textReply("same")}, nil)

	first, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)
	second, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
}

func TestRuntime_PassesModelOverride(t *testing.T) {
	p := &stubProvider{reply: textReply("x")}
	rt := NewRuntime(mustConfig(t, "a", WithModel("gpt-4o")), p, nil)

	_, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.requests[0].Model)
}

func TestRuntime_ToolLoop(t *testing.T) {
	tool := &fakeCapability{name: "web_search", execute: func(ctx context.Context, input string) (string, error) {
		assert.Equal(t, "Librarian", AgentNameFromContext(ctx))
		return "Go Tour\nhttps://go.dev/tour\nstart here", nil
	}}
	p := &stubProvider{reply: searchThenAnswer("resources")}
	rt := NewRuntime(mustConfig(t, "Librarian", WithTools("web_search")), p, registryWith(tool))

	resp, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)

	assert.Equal(t, "resources", resp.Content)
	assert.Equal(t, 1, resp.ToolCalls)
	assert.EqualValues(t, 1, tool.calls.Load())

	require.Len(t, p.requests, 2)
	require.Len(t, p.requests[0].Tools, 1)
	assert.Equal(t, "web_search", p.requests[0].Tools[0].Name)

	second := p.requests[1].Input
	require.Len(t, second, 3)
	require.NotNil(t, second[1].Call)
	assert.Equal(t, "call_1", second[1].Call.ID)
	require.NotNil(t, second[2].Result)
	assert.Equal(t, llm.ToolResult{CallID: "call_1", Output: "Go Tour\nhttps://go.dev/tour\nstart here"}, *second[2].Result)
}

func TestRuntime_ToolFailureIsBestEffort(t *testing.T) {
	tool := &fakeCapability{name: "web_search", execute: func(context.Context, string) (string, error) {
		return "", errors.New("search backend down")
	}}
	p := &stubProvider{reply: searchThenAnswer("answered without search")}
	rt := NewRuntime(mustConfig(t, "Librarian", WithTools("web_search")), p, registryWith(tool))

	resp, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "answered without search", resp.Content)

	result := p.requests[1].Input[2].Result
	require.NotNil(t, result)
	assert.Equal(t, "error: search backend down", result.Output)
}

func TestRuntime_UnknownToolIsReportedToModel(t *testing.T) {
	p := &stubProvider{reply: func(n int, req llm.Request) (*llm.Reply, error) {
		if n == 0 {
			return &llm.Reply{Calls: []llm.ToolCall{{ID: "c", Name: "nope", Arguments: `{}`}}}, nil
		}
		return &llm.Reply{Text: "done"}, nil
	}}
	rt := NewRuntime(mustConfig(t, "a"), p, nil)

	resp, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Contains(t, p.requests[1].Input[2].Result.Output, `unknown tool "nope"`)
}

func TestRuntime_InvalidToolInputIsNotExecuted(t *testing.T) {
	tool := &fakeCapability{name: "web_search", schema: map[string]any{
		"type":     "object",
		"required": []string{"query"},
	}}
	p := &stubProvider{reply: func(n int, req llm.Request) (*llm.Reply, error) {
		if n == 0 {
			return &llm.Reply{Calls: []llm.ToolCall{{ID: "c", Name: "web_search", Arguments: `{"count":3}`}}}, nil
		}
		return &llm.Reply{Text: "done"}, nil
	}}
	rt := NewRuntime(mustConfig(t, "a", WithTools("web_search")), p, registryWith(tool))

	resp, err := rt.Run(context.Background(), "Go")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.EqualValues(t, 0, tool.calls.Load())
	assert.Contains(t, p.requests[1].Input[2].Result.Output, "invalid input for web_search")
}

func TestRuntime_StrictToolPolicy(t *testing.T) {
	tool := &fakeCapability{name: "web_search", execute: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("serpapi: %w", search.ErrUnauthorized)
	}}
	p := &stubProvider{reply: searchThenAnswer("unreachable")}
	cfg := mustConfig(t, "Librarian", WithTools("web_search"), WithToolPolicy(ToolStrict))
	rt := NewRuntime(cfg, p, registryWith(tool))

	resp, err := rt.Run(context.Background(), "Go")
	assert.Nil(t, resp)
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, "tool web_search", authErr.Backend)
	assert.Len(t, p.requests, 1)
}

func TestRuntime_ModelFailure(t *testing.T) {
	p := &stubProvider{reply: func(int, llm.Request) (*llm.Reply, error) {
		return nil, errors.New("HTTP 500")
	}}
	rt := NewRuntime(mustConfig(t, "a"), p, nil)

	resp, err := rt.Run(context.Background(), "Go")
	assert.Nil(t, resp)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Timeout)
	assert.Equal(t, "model", perr.Backend)
}

func TestRuntime_ModelUnauthorized(t *testing.T) {
	p := &stubProvider{reply: func(int, llm.Request) (*llm.Reply, error) {
		return nil, fmt.Errorf("openai: %w", llm.ErrUnauthorized)
	}}
	rt := NewRuntime(mustConfig(t, "a"), p, nil)

	_, err := rt.Run(context.Background(), "Go")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, errors.Is(err, llm.ErrUnauthorized))
}

func TestRuntime_TruncatedReplyIsProviderError(t *testing.T) {
	p := &stubProvider{reply: func(int, llm.Request) (*llm.Reply, error) {
		return nil, fmt.Errorf("anthropic: %w: max_tokens (64) reached", llm.ErrIncomplete)
	}}
	rt := NewRuntime(mustConfig(t, "a"), p, nil)

	resp, err := rt.Run(context.Background(), "Go")
	assert.Nil(t, resp)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, errors.Is(err, llm.ErrIncomplete))
}

func TestRuntime_CallTimeout(t *testing.T) {
	rt := NewRuntime(mustConfig(t, "a"), blockingProvider{}, nil, WithCallTimeout(20*time.Millisecond))

	_, err := rt.Run(context.Background(), "Go")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.True(t, perr.Timeout)
}

type blockingProvider struct{}

func (blockingProvider) Chat(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRuntime_MaxTurns(t *testing.T) {
	tool := &fakeCapability{name: "web_search"}
	p := &stubProvider{reply: func(n int, req llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Calls: []llm.ToolCall{{ID: fmt.Sprint(n), Name: "web_search", Arguments: `{}`}}}, nil
	}}
	rt := NewRuntime(mustConfig(t, "a", WithTools("web_search")), p, registryWith(tool), WithMaxTurns(3))

	resp, err := rt.Run(context.Background(), "Go")
	assert.Nil(t, resp)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, p.requests, 3)
}

func TestRuntime_EmptyReply(t *testing.T) {
	rt := NewRuntime(mustConfig(t, "a"), &stubProvider{reply: textReply("")}, nil)

	resp, err := rt.Run(context.Background(), "Go")
	assert.Nil(t, resp)
	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	// "é" is two bytes; cutting inside it backs up to the rune start.
	got := truncate("caféteria", 4)
	assert.Equal(t, "caf", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate(strings.Repeat("日本", 100), 200)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 200)
}
