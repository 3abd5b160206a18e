package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aristotle/internal/agent"
	"aristotle/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	gotQuery string
	gotCount int
	results  []search.Result
	err      error
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(ctx context.Context, query string, count int) ([]search.Result, error) {
	f.gotQuery, f.gotCount = query, count
	return f.results, f.err
}

var _ agent.Capability = (*WebSearch)(nil)

func TestWebSearch_Execute(t *testing.T) {
	fs := &fakeSearch{results: []search.Result{
		{Title: "Go by Example", URL: "https://gobyexample.com", Snippet: "Hands-on introduction"},
		{Title: "Effective Go", URL: "https://go.dev/doc/effective_go", Snippet: "Tips"},
	}}
	w := NewWebSearch(fs, 0)

	out, err := w.Execute(context.Background(), `{"query":" golang tutorials ","count":0}`)
	require.NoError(t, err)

	assert.Equal(t, "golang tutorials", fs.gotQuery)
	assert.Equal(t, defaultResultCount, fs.gotCount)
	assert.Equal(t, "Go by Example\nhttps://gobyexample.com\nHands-on introduction\n---\nEffective Go\nhttps://go.dev/doc/effective_go\nTips", out)
}

func TestWebSearch_ExecuteErrors(t *testing.T) {
	w := NewWebSearch(&fakeSearch{}, 3)

	_, err := w.Execute(context.Background(), `not json`)
	assert.Error(t, err)

	_, err = w.Execute(context.Background(), `{"query":"","count":1}`)
	assert.Error(t, err)

	boom := errors.New("upstream down")
	w = NewWebSearch(&fakeSearch{err: boom}, 3)
	_, err = w.Execute(context.Background(), `{"query":"x","count":1}`)
	assert.ErrorIs(t, err, boom)
}

func TestWebSearch_NoResults(t *testing.T) {
	w := NewWebSearch(&fakeSearch{}, 3)
	out, err := w.Execute(context.Background(), `{"query":"x","count":2}`)
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestWebSearch_Metadata(t *testing.T) {
	w := NewWebSearch(&fakeSearch{}, 3)
	assert.Equal(t, "web_search", w.Name())
	assert.Equal(t, agent.CapabilityWebSearch, w.Kind())

	schema, ok := w.InputSchema().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"query", "count"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxOutputBytes+10)
	out := truncate([]byte(long))
	assert.True(t, strings.HasSuffix(out, "... (truncated)"))
	assert.Equal(t, "short", truncate([]byte("short")))
}

func TestWebSearch_CountMustBeInteger(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(NewWebSearch(&fakeSearch{}, 5))

	assert.NoError(t, reg.Validate("web_search", `{"query":"go","count":3}`))
	assert.Error(t, reg.Validate("web_search", `{"query":"go","count":7.5}`))
	assert.Error(t, reg.Validate("web_search", `{"query":"go","count":"3"}`))
}
