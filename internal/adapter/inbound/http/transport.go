// Package http provides the agent-facing HTTP transport for the
// gateway's call/search/discover/get_mcp_server_tools operations.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/toolgate/toolgate/internal/service"
)

// Transport is the inbound HTTP adapter wrapping a *service.Gateway.
type Transport struct {
	gateway *service.Gateway
	server  *http.Server
	addr    string
	logger  *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8088".
func WithAddr(addr string) Option {
	return func(t *Transport) { t.addr = addr }
}

// WithLogger sets the logger used for request correlation and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// NewTransport builds a Transport wrapping gateway.
func NewTransport(gateway *service.Gateway, opts ...Option) *Transport {
	t := &Transport{
		gateway: gateway,
		addr:    "127.0.0.1:8088",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start builds the route table and serves until ctx is cancelled.
func (t *Transport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler())
	mux.Handle("/call", requestIDMiddleware(t.logger)(callHandler(t.gateway)))
	mux.Handle("/search", requestIDMiddleware(t.logger)(searchHandler(t.gateway)))
	mux.Handle("/discover", requestIDMiddleware(t.logger)(discoverHandler(t.gateway)))
	mux.Handle("/tools", requestIDMiddleware(t.logger)(serverToolsHandler(t.gateway)))

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("http: starting server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("http: context cancelled, shutting down")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("http: shutdown error", "error", err)
		return err
	}
	return nil
}

// requestIDMiddleware stamps every request with a correlation id, used
// in every log line the handler emits for that request.
func requestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			w.Header().Set("X-Request-Id", requestID)
			ctx := withRequestLogger(r.Context(), logger.With("request_id", requestID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type loggerKey struct{}

func withRequestLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFromContext returns the per-request logger stamped by
// requestIDMiddleware, or slog.Default() if none is present.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
