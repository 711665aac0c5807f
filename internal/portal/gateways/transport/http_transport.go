package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haukened/portalgate/internal/portal/common/log"
)

const shutdownTimeout = 10 * time.Second

// HTTPTransport implements ServerTransport on a TCP listener.
type HTTPTransport struct {
	addr    string
	handler http.Handler
	logger  log.Logger

	mu       sync.RWMutex
	running  bool
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func NewHTTPTransport(addr string, handler http.Handler, logger log.Logger) *HTTPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &HTTPTransport{addr: addr, handler: handler, logger: logger}
}

// Start binds the listener and serves in the background.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("HTTP transport already running")
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to bind HTTP listener on %s: %w", t.addr, err)
	}

	t.listener = ln
	t.server = &http.Server{
		Handler:           t.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	t.done = make(chan struct{})
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   ln.Addr().String(),
	}, "HTTP transport started")

	go t.serve(t.server, ln, t.done)
	return nil
}

func (t *HTTPTransport) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.logger.Error(map[string]any{"error": err.Error()}, "HTTP server failed")
	}
}

// Stop shuts the server down, waiting up to shutdownTimeout for in-flight
// requests.
func (t *HTTPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := t.server.Shutdown(ctx)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err.Error()}, "Error shutting down HTTP server")
	}
	<-t.done

	t.running = false
	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   t.listener.Addr().String(),
	}, "HTTP transport stopped")
	return err
}

// Address returns the bound address while running.
func (t *HTTPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

var _ ServerTransport = (*HTTPTransport)(nil)
