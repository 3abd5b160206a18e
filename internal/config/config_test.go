package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SERPAPI_API_KEY", "")
	t.Setenv("BRAVE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ARISTOTLE_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.DefaultLLM)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM().Model)
	assert.Equal(t, SearchSerpAPI, cfg.Search.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Orchestrator.CallTimeout)
	assert.False(t, cfg.Orchestrator.Parallel)
	assert.Equal(t, ":8484", cfg.Gateway.Addr)

	require.Len(t, cfg.Agents, 3)
	assert.Equal(t, "Academic Advisor", cfg.Agents[0].Name)
	assert.Empty(t, cfg.Agents[0].Tools)
	assert.Equal(t, []string{"web_search"}, cfg.Agents[1].Tools)
	assert.Equal(t, "Certification Course Instructor", cfg.Agents[2].Heading)
	assert.Equal(t, "Course Instructor", cfg.Agents[2].Name)
	assert.True(t, cfg.NeedsSearch())
}

func TestLoad_EnvCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SERPAPI_API_KEY", "serp-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM().APIKey)
	assert.Equal(t, "serp-env", cfg.Search.APIKey)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRAVE_API_KEY", "brave-env")
	path := writeConfig(t, `
default_llm = "local"

[llm.local]
model = "llama3"
base_url = "http://localhost:11434/v1"
api_key = "sk-file"

[search]
provider = "brave"
count = 8

[search.cache]
enabled = true
ttl = "1h"

[orchestrator]
parallel = true
call_timeout = "45s"

[trace]
enabled = true
endpoint = "localhost:4318"

[[agent]]
name = "Tutor"
role = "Explainer"
instructions = ["Explain the topic simply"]
markdown = false
tool_policy = "strict"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.LLM().Model)
	assert.Equal(t, "sk-file", cfg.LLM().APIKey)
	assert.Equal(t, SearchBrave, cfg.Search.Provider)
	assert.Equal(t, "brave-env", cfg.Search.APIKey)
	assert.Equal(t, 8, cfg.Search.Count)
	assert.True(t, cfg.Search.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Search.Cache.TTL)
	assert.True(t, cfg.Orchestrator.Parallel)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.CallTimeout)
	assert.True(t, cfg.Trace.Enabled)

	require.Len(t, cfg.Agents, 1)
	a := cfg.Agents[0]
	assert.Equal(t, "Tutor", a.Name)
	require.NotNil(t, a.Markdown)
	assert.False(t, *a.Markdown)
	assert.Equal(t, "strict", a.ToolPolicy)
	assert.False(t, cfg.NeedsSearch())
}

func TestLoad_Anthropic(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	path := writeConfig(t, `
default_llm = "claude"

[llm.claude]
type = "anthropic"
model = "claude-sonnet-4-5"
max_tokens = 2048
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, LLMAnthropic, cfg.LLM().Type)
	assert.Equal(t, "sk-ant", cfg.LLM().APIKey)
	assert.Equal(t, 2048, cfg.LLM().MaxTokens)
	assert.Equal(t, LLMOpenAI, cfg.LLMs["openai"].Type)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `default_llm = "missing"`))
	assert.ErrorContains(t, err, `default LLM "missing"`)

	_, err = Load(writeConfig(t, "[search]\nprovider = \"bing\""))
	assert.ErrorContains(t, err, "unknown search provider")

	_, err = Load(writeConfig(t, "[llm.openai]\ntype = \"cohere\""))
	assert.ErrorContains(t, err, `unknown type "cohere"`)

	_, err = Load(writeConfig(t, "not = [valid"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
