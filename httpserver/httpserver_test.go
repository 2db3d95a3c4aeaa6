package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

func header(name, value string) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add(name, value)
			h.ServeHTTP(w, r)
		})
	}
}

func TestNewAppliesMiddlewareInOrder(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	s := New(logger.Sugar, "API", "8080",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
		WithMiddleware(header("X-Order", "outer"), nil, header("X-Order", "inner")),
	)
	assert.Equal(t, "api:8080", s.String())

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"outer", "inner"}, rec.Header().Values("X-Order"))
}

func TestListenShutdown(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	s := New(logger.Sugar, "api", "0", http.NotFoundHandler())
	done := make(chan error, 1)
	go func() { done <- s.Listen() }()

	// give ListenAndServe a moment to bind before shutting down
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return")
	}
}
