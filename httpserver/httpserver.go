// Package httpserver provides a named http.Server that satisfies
// startup.Listener.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Middleware wraps a handler, e.g. tracing.HTTPMiddleware.
type Middleware func(http.Handler) http.Handler

type Server struct {
	http.Server
	log  Logger
	name string
}

type ServerOption func(*serverOptions)

type serverOptions struct {
	middleware []Middleware
}

// WithMiddleware wraps the handler. The first middleware given is outermost.
func WithMiddleware(mw ...Middleware) ServerOption {
	return func(o *serverOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

func New(log Logger, name string, port string, handler http.Handler, opts ...ServerOption) *Server {
	log.Debugf("New HTTPServer %s", name)

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	for i := len(o.middleware) - 1; i >= 0; i-- {
		if o.middleware[i] != nil {
			handler = o.middleware[i](handler)
		}
	}

	m := Server{
		Server: http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		name: strings.ToLower(name),
	}
	m.log = log.WithIndex("httpserver", m.String())
	// http.Server holds a mutex so a reference is returned rather than a copy.
	return &m
}

func (m *Server) String() string {
	// No logging here please
	return fmt.Sprintf("%s%s", m.name, m.Addr)
}

// Listen serves until Shutdown. A clean shutdown is not an error.
func (m *Server) Listen() error {
	m.log.Infof("Listen")
	err := m.Server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server terminated: %w", m, err)
	}
	return nil
}

func (m *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	m.log.Infof("Shutdown")
	err := m.Server.Shutdown(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
