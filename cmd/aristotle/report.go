package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"aristotle/internal/agent"
	"aristotle/internal/app"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reportParallel  bool
	reportJSON      bool
	reportModelKey  string
	reportSearchKey string
	reportAgent     string
)

var reportCmd = &cobra.Command{
	Use:   "report [topic]",
	Short: "Generate a learning roadmap, resources and courses for a topic",
	Example: `  aristotle report "Machine Learning"
  echo "Distributed Systems" | aristotle report
  aristotle report --agent "Research Librarian" Rust`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		topic := strings.Join(args, " ")
		if strings.TrimSpace(topic) == "" {
			topic = readTopic(cmd.InOrStdin())
		}

		cfg, builder, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		creds := app.Credentials{ModelKey: reportModelKey, SearchKey: reportSearchKey}.Merge(app.FromConfig(cfg))

		ctx = agent.ContextWithRunID(ctx, uuid.NewString())
		var responses []*agent.Response
		if reportAgent != "" {
			responses, err = runOne(ctx, cmd.ErrOrStderr(), builder, creds, reportAgent, topic)
		} else {
			responses, err = runAll(ctx, cmd.ErrOrStderr(), builder, creds, topic)
		}
		if err != nil {
			return err
		}

		if reportJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(responses)
		}
		return renderMarkdown(cmd.OutOrStdout(), responses)
	},
}

func init() {
	reportCmd.Flags().BoolVarP(&reportParallel, "parallel", "p", false, "run agents concurrently")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print responses as JSON")
	reportCmd.Flags().StringVar(&reportModelKey, "model-key", "", "model API key (default $OPENAI_API_KEY or $ANTHROPIC_API_KEY)")
	reportCmd.Flags().StringVarP(&reportAgent, "agent", "a", "", "run only the named agent")
	reportCmd.Flags().StringVar(&reportSearchKey, "search-key", "", "search API key (default $SERPAPI_API_KEY or $BRAVE_API_KEY)")
}

func runAll(ctx context.Context, stderr io.Writer, builder *app.Builder, creds app.Credentials, topic string) ([]*agent.Response, error) {
	opts := []agent.OrchestratorOption{agent.WithObserver(progress(stderr))}
	if reportParallel {
		opts = append(opts, agent.WithParallel())
	}
	orch, err := builder.Build(creds, opts...)
	if err != nil {
		return nil, err
	}
	return orch.RunAll(ctx, topic)
}

func runOne(ctx context.Context, stderr io.Writer, builder *app.Builder, creds app.Credentials, name, topic string) ([]*agent.Response, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, agent.ErrEmptyTopic
	}
	rt, err := builder.Runner(creds, name)
	if err != nil {
		return nil, err
	}
	notify := progress(stderr)
	notify(agent.Event{Type: agent.EventAgentStart, Agent: rt.Name(), Status: rt.Status()})
	resp, err := rt.Run(ctx, topic)
	if err != nil {
		notify(agent.Event{Type: agent.EventAgentError, Agent: rt.Name()})
		return nil, &agent.AgentError{Agent: rt.Name(), Err: err}
	}
	notify(agent.Event{Type: agent.EventAgentDone, Agent: rt.Name()})
	return []*agent.Response{resp}, nil
}

func readTopic(r io.Reader) string {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

// progress prints each agent's status label while it runs.
func progress(w io.Writer) func(agent.Event) {
	started := make(map[string]time.Time)
	return func(ev agent.Event) {
		switch ev.Type {
		case agent.EventAgentStart:
			started[ev.Agent] = time.Now()
			status := ev.Status
			if status == "" {
				status = ev.Agent + "..."
			}
			fmt.Fprintln(w, status)
		case agent.EventAgentDone:
			fmt.Fprintf(w, "%s done in %s\n", ev.Agent, time.Since(started[ev.Agent]).Round(100*time.Millisecond))
		case agent.EventAgentError:
			fmt.Fprintf(w, "%s failed\n", ev.Agent)
		}
	}
}

func renderMarkdown(w io.Writer, responses []*agent.Response) error {
	for _, resp := range responses {
		if _, err := fmt.Fprintf(w, "### %s Response:\n\n%s\n\n---\n\n", resp.Title(), strings.TrimSpace(resp.Content)); err != nil {
			return err
		}
	}
	return nil
}
