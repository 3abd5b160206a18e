package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type OrchestratorOption func(*Orchestrator)

// WithParallel runs all agents concurrently. Responses keep configured order.
func WithParallel() OrchestratorOption {
	return func(o *Orchestrator) { o.parallel = true }
}

// WithObserver registers a progress callback. Calls are serialized.
func WithObserver(fn func(Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = fn }
}

// Orchestrator feeds one topic to an ordered set of agents and collects
// their responses in the same order. It holds no state between calls.
type Orchestrator struct {
	runners  []Runner
	parallel bool
	observer func(Event)
	mu       sync.Mutex
}

func NewOrchestrator(runners []Runner, opts ...OrchestratorOption) (*Orchestrator, error) {
	if len(runners) == 0 {
		return nil, &ConfigError{Field: "agents", Reason: "at least one agent is required"}
	}
	seen := make(map[string]bool, len(runners))
	for _, r := range runners {
		if seen[r.Name()] {
			return nil, &ConfigError{Agent: r.Name(), Field: "name", Reason: "must be unique"}
		}
		seen[r.Name()] = true
	}

	o := &Orchestrator{runners: append([]Runner(nil), runners...)}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Agents returns the agent names in presentation order.
func (o *Orchestrator) Agents() []string {
	names := make([]string, len(o.runners))
	for i, r := range o.runners {
		names[i] = r.Name()
	}
	return names
}

// RunAll invokes every agent with the topic. The first failure aborts the
// call and is returned as an *AgentError; no partial results are returned.
func (o *Orchestrator) RunAll(ctx context.Context, topic string) ([]*Response, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	start := time.Now()
	slog.Info("orchestration started", "run_id", RunIDFromContext(ctx), "agents", len(o.runners), "parallel", o.parallel)

	var (
		out []*Response
		err error
	)
	if o.parallel {
		out, err = o.runParallel(ctx, topic)
	} else {
		out, err = o.runSequential(ctx, topic)
	}
	if err != nil {
		slog.Warn("orchestration failed", "run_id", RunIDFromContext(ctx), "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	slog.Info("orchestration finished", "run_id", RunIDFromContext(ctx), "agents", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, topic string) ([]*Response, error) {
	out := make([]*Response, 0, len(o.runners))
	for _, r := range o.runners {
		resp, err := o.runOne(ctx, r, topic)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (o *Orchestrator) runParallel(ctx context.Context, topic string) ([]*Response, error) {
	out := make([]*Response, len(o.runners))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range o.runners {
		g.Go(func() error {
			resp, err := o.runOne(gctx, r, topic)
			if err != nil {
				return err
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) runOne(ctx context.Context, r Runner, topic string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AgentError{Agent: r.Name(), Err: &ProviderError{Backend: "model", Err: err}}
	}

	o.emit(Event{Type: EventAgentStart, Agent: r.Name(), Status: statusOf(r)})
	slog.Debug("agent started", "run_id", RunIDFromContext(ctx), "agent", r.Name())

	resp, err := r.Run(ctx, topic)
	if err == nil && resp == nil {
		err = &ProviderError{Backend: "model", Err: fmt.Errorf("no response")}
	}
	if err != nil {
		err = &AgentError{Agent: r.Name(), Err: err}
		o.emit(Event{Type: EventAgentError, Agent: r.Name(), Err: err})
		return nil, err
	}

	o.emit(Event{Type: EventAgentDone, Agent: r.Name(), Response: resp})
	return resp, nil
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer(ev)
}

func statusOf(r Runner) string {
	if sr, ok := r.(StatusReporter); ok {
		return sr.Status()
	}
	return ""
}
