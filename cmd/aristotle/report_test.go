package main

import (
	"bytes"
	"strings"
	"testing"

	"aristotle/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := renderMarkdown(&buf, []*agent.Response{
		{Agent: "Academic Advisor", Content: "roadmap\n"},
		{Agent: "Research Librarian", Content: "resources"},
		{Agent: "Course Instructor", Heading: "Certification Course Instructor", Content: "courses"},
	})
	require.NoError(t, err)

	want := "### Academic Advisor Response:\n\nroadmap\n\n---\n\n" +
		"### Research Librarian Response:\n\nresources\n\n---\n\n" +
		"### Certification Course Instructor Response:\n\ncourses\n\n---\n\n"
	assert.Equal(t, want, buf.String())
}

func TestReadTopic(t *testing.T) {
	assert.Equal(t, "Rust", readTopic(strings.NewReader("Rust\nignored\n")))
	assert.Empty(t, readTopic(strings.NewReader("")))
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	fn := progress(&buf)
	fn(agent.Event{Type: agent.EventAgentStart, Agent: "A", Status: "Generating Learning Roadmap..."})
	fn(agent.Event{Type: agent.EventAgentStart, Agent: "B"})
	fn(agent.Event{Type: agent.EventAgentError, Agent: "B"})

	assert.Equal(t, "Generating Learning Roadmap...\nB...\nB failed\n", buf.String())
}
