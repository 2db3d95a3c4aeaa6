package startup

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// based on gist found at https://gist.github.com/pteich/c0bb58b0b7c8af7cc6a689dd0d3d26ef?permalink_comment_id=4053701

const shutdownTimeout = 5 * time.Second

// Listener is anything that serves until told to stop: the HTTP servers and
// the bucket notification watcher.
type Listener interface {
	Listen() error
	Shutdown(context.Context) error
}

// Listeners runs a set of listeners together. When one fails or a signal
// arrives they are all shut down.
type Listeners struct {
	name      string
	log       Logger
	listeners []Listener
}

type ListenersOption func(*Listeners)

func WithListener(h Listener) ListenersOption {
	return func(l *Listeners) {
		if h != nil {
			l.listeners = append(l.listeners, h)
		}
	}
}

func WithListeners(h []Listener) ListenersOption {
	return func(l *Listeners) {
		for i := 0; i < len(h); i++ {
			if h[i] != nil {
				l.listeners = append(l.listeners, h[i])
			}
		}
	}
}

func NewListeners(log Logger, name string, opts ...ListenersOption) Listeners {
	l := Listeners{log: log, name: strings.ToLower(name)}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func (l *Listeners) String() string {
	return l.name
}

// Listen runs every listener until SIGINT or SIGTERM.
func (l *Listeners) Listen() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return l.ListenContext(ctx)
}

// ListenContext runs every listener until ctx is done or one of them returns.
func (l *Listeners) ListenContext(ctx context.Context) error {
	g, errCtx := errgroup.WithContext(ctx)
	finished := make(chan struct{})

	var running sync.WaitGroup
	for _, h := range l.listeners {
		h := h
		running.Add(1)
		g.Go(func() error {
			defer running.Done()
			return h.Listen()
		})
	}
	// a listener returning cleanly does not cancel errCtx, so release the
	// shutdown goroutine once every listener has stopped
	go func() {
		running.Wait()
		close(finished)
	}()

	g.Go(func() error {
		select {
		case <-errCtx.Done():
		case <-finished:
			return nil
		}
		l.log.Infof("Cancel %s: %v", l, context.Cause(errCtx))
		return l.Shutdown()
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (l *Listeners) Shutdown() error {
	var err error
	for _, h := range l.listeners {
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			e := h.Shutdown(ctx)
			if e != nil {
				if err != nil {
					err = fmt.Errorf("cannot shutdown %s: %w: %w", h, err, e)
				} else {
					err = fmt.Errorf("cannot shutdown %s: %w", h, e)
				}
			}
		}()
	}
	return err
}
