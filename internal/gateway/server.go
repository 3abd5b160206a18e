package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"aristotle/internal/app"
	"aristotle/internal/channels"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	builder  *app.Builder
	defaults app.Credentials
	token    string
	mux      *http.ServeMux
}

// NewServer serves reports built by builder. Credentials missing from a
// request fall back to defaults. A non-empty token guards the /v1 routes.
func NewServer(builder *app.Builder, defaults app.Credentials, token string, chs ...channels.Channel) *Server {
	s := &Server{
		builder:  builder,
		defaults: defaults,
		token:    token,
		mux:      http.NewServeMux(),
	}
	s.routes()
	for _, ch := range chs {
		ch.RegisterRoutes(s.mux)
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/reports", s.authorize(s.handleReports))
	s.mux.HandleFunc("GET /v1/agents", s.authorize(s.handleListAgents))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "gateway")
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
