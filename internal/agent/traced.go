package agent

import (
	"context"
	"log/slog"

	"aristotle/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedTool struct {
	Capability
}

func withTrace(c Capability) Capability {
	return &tracedTool{Capability: c}
}

func (t *tracedTool) Execute(ctx context.Context, input string) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, t.Name(),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.agent.name", AgentNameFromContext(ctx)),
			attribute.String("gen_ai.tool.name", t.Name()),
			attribute.String("gen_ai.tool.kind", string(t.Kind())),
			attribute.String("gen_ai.tool.input", input),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("tool span started", "tool", t.Name(), "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	result, err := t.Capability.Execute(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(result)))
	return result, nil
}
