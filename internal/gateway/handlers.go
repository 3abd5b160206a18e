package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"aristotle/internal/agent"
	"aristotle/internal/app"

	"github.com/google/uuid"
)

const (
	headerModelKey  = "X-Model-Key"
	headerOpenAIKey = "X-OpenAI-Key"
	headerSearchKey = "X-Search-Key"

	maxRequestBody = 64 << 10
)

type reportRequest struct {
	Topic string `json:"topic"`
}

type startEvent struct {
	RunID  string `json:"run_id"`
	Agent  string `json:"agent"`
	Status string `json:"status,omitempty"`
}

type reportEvent struct {
	Agent     string `json:"agent"`
	Role      string `json:"role"`
	Heading   string `json:"heading"`
	Content   string `json:"content"`
	Format    string `json:"format"`
	Model     string `json:"model,omitempty"`
	ToolCalls int    `json:"tool_calls"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type errorEvent struct {
	Agent string `json:"agent,omitempty"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type agentInfo struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Status      string   `json:"status,omitempty"`
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	want := []byte("Bearer " + s.token)
	return func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// handleReports validates the request before any bytes are streamed, then
// emits agent_start while agents run and the ordered reports once all finish.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, agent.ErrEmptyTopic.Error())
		return
	}

	modelKey := r.Header.Get(headerModelKey)
	if modelKey == "" {
		modelKey = r.Header.Get(headerOpenAIKey)
	}
	creds := app.Credentials{
		ModelKey:  modelKey,
		SearchKey: r.Header.Get(headerSearchKey),
	}.Merge(s.defaults)

	runID := uuid.NewString()
	var sse *SSEWriter

	orch, err := s.builder.Build(creds, agent.WithObserver(func(ev agent.Event) {
		if ev.Type == agent.EventAgentStart {
			sse.Send("agent_start", startEvent{RunID: runID, Agent: ev.Agent, Status: ev.Status})
		}
	}))
	if err != nil {
		var ce *agent.CredentialsError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("building orchestrator", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sse = NewSSEWriter(w)
	ctx := agent.ContextWithRunID(r.Context(), runID)
	responses, err := orch.RunAll(ctx, topic)
	if err != nil {
		sse.Send("error", toErrorEvent(err))
		return
	}

	for _, resp := range responses {
		sse.Send("report", reportEvent{
			Agent:     resp.Agent,
			Role:      resp.Role,
			Heading:   resp.Title(),
			Content:   resp.Content,
			Format:    string(resp.Format),
			Model:     resp.Model,
			ToolCalls: resp.ToolCalls,
			ElapsedMS: resp.Elapsed.Milliseconds(),
		})
	}
	sse.Send("done", map[string]any{"run_id": runID, "reports": len(responses)})
}

func toErrorEvent(err error) errorEvent {
	ev := errorEvent{Kind: "provider", Error: err.Error()}
	var (
		ae   *agent.AgentError
		auth *agent.AuthError
		pe   *agent.ProviderError
	)
	if errors.As(err, &ae) {
		ev.Agent = ae.Agent
	}
	switch {
	case errors.As(err, &auth):
		ev.Kind = "auth"
	case errors.As(err, &pe) && pe.Timeout:
		ev.Kind = "timeout"
	}
	return ev
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	configs := s.builder.Agents()
	out := make([]agentInfo, 0, len(configs))
	for _, c := range configs {
		out = append(out, agentInfo{
			Name:        c.Name(),
			Role:        c.Role(),
			Description: c.Description(),
			Tools:       append([]string{}, c.Tools()...),
			Status:      c.Status(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
