package channels

import (
	"context"
	"net/http"

	"aristotle/internal/agent"
)

type Channel interface {
	Name() string
	RegisterRoutes(mux *http.ServeMux)
}

// Reporter produces the ordered agent reports for a topic.
type Reporter interface {
	RunAll(ctx context.Context, topic string) ([]*agent.Response, error)
}
