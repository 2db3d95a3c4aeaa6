// Package mirror applies batches of storage change notifications to the
// wallpaper set index.
//
// For every notification the object's category and filename are derived from
// its key. Created objects are added to the category set, removed objects are
// taken out of it, and any other event is ignored. Both mutations are
// idempotent so a redelivered batch converges on the same index.
//
// A batch is validated as a whole before the index is touched: one malformed
// record fails the invocation with no mutations applied. Store errors stop the
// batch where they occur and are returned as transient so the runtime may
// redeliver.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	otrace "github.com/opentracing/opentracing-go"

	"github.com/datatrails/go-wallpaper-mirror/errhandling"
	"github.com/datatrails/go-wallpaper-mirror/notification"
	"github.com/datatrails/go-wallpaper-mirror/redis"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

var (
	ErrNoIndex = errors.New("no index connection")
)

// Index is the set store the mirror mutates.
type Index interface {
	Add(ctx context.Context, c wallpaper.Category, filename string) (bool, error)
	Remove(ctx context.Context, c wallpaper.Category, filename string) (bool, error)
	Close() error
}

// Dialer acquires an index connection for the duration of one batch.
type Dialer func(ctx context.Context) (Index, error)

// Observer receives a callback per applied notification and per batch.
type Observer interface {
	ObserveNotification(c wallpaper.Category, kind notification.Kind, changed bool)
	ObserveBatch(elapsed time.Duration, err error)
}

// Config is everything the mirror needs to reach the index. Redis.Host is
// required.
type Config struct {
	Redis redis.Config
}

func (cfg Config) Validate() error {
	return cfg.Redis.Validate()
}

// Result summarises an applied batch.
type Result struct {
	InvocationID string `json:"invocationId"`
	Added        int    `json:"added"`
	Removed      int    `json:"removed"`
	Ignored      int    `json:"ignored"`
	// Changed counts the mutations that altered set membership.
	Changed int `json:"changed"`
}

type Mirror struct {
	cfg      Config
	log      Logger
	dial     Dialer
	observer Observer
}

type MirrorOption func(*Mirror)

// WithDialer replaces the default redis dialer.
func WithDialer(d Dialer) MirrorOption {
	return func(m *Mirror) {
		m.dial = d
	}
}

func WithObserver(o Observer) MirrorOption {
	return func(m *Mirror) {
		m.observer = o
	}
}

// New validates cfg and returns a mirror that dials redis once per batch.
func New(log Logger, cfg Config, opts ...MirrorOption) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mirror config: %w", err)
	}
	m := &Mirror{
		cfg: cfg,
		log: log.WithIndex("component", "mirror"),
	}
	m.dial = m.dialRedis
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Mirror) dialRedis(ctx context.Context) (Index, error) {
	idx, err := redis.NewSetIndex(ctx, m.log, m.cfg.Redis)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// HandleEvent decodes an OSS event payload and applies it.
func (m *Mirror) HandleEvent(ctx context.Context, payload []byte) (Result, error) {
	batch, err := notification.Decode(payload)
	if err != nil {
		return Result{InvocationID: InvocationID(ctx)}, err
	}
	return m.HandleBatch(ctx, batch)
}

// HandleBatch validates batch, acquires an index connection, applies every
// notification and releases the connection before returning.
func (m *Mirror) HandleBatch(ctx context.Context, batch notification.Batch) (result Result, err error) {
	id := InvocationID(ctx)
	ctx = WithInvocationID(ctx, id)

	span, ctx := otrace.StartSpanFromContext(ctx, "mirror.HandleBatch")
	defer span.Finish()
	span.SetTag("invocation", id)
	span.SetTag("notifications", len(batch))

	log := m.log.FromContext(ctx).WithIndex("invocation", id)
	defer log.Close()

	start := time.Now()
	defer func() {
		if m.observer != nil {
			m.observer.ObserveBatch(time.Since(start), err)
		}
	}()

	result.InvocationID = id
	if err = batch.Validate(); err != nil {
		log.Infof("rejecting batch of %d: %v", len(batch), err)
		return result, err
	}
	if len(batch) == 0 {
		log.Debugf("empty batch")
		return result, nil
	}

	idx, err := m.dial(ctx)
	if err != nil {
		log.Infof("cannot acquire index: %v", err)
		return result, errhandling.NewTransientError(err)
	}
	if idx == nil {
		return result, errhandling.NewTransientError(ErrNoIndex)
	}
	defer func() {
		// the mutations have landed, a failed release is only worth a log line
		if cerr := idx.Close(); cerr != nil {
			log.Infof("release index: %v", cerr)
		}
	}()

	applied, err := m.Apply(ctx, idx, batch)
	applied.InvocationID = id
	if err != nil {
		log.Infof("batch of %d stopped: %v", len(batch), err)
		return applied, err
	}
	log.Infof("batch of %d: added %d removed %d ignored %d changed %d",
		len(batch), applied.Added, applied.Removed, applied.Ignored, applied.Changed)
	return applied, nil
}

// Apply maps each notification of batch onto idx in order. It stops at the
// first store error, which is returned marked transient.
func (m *Mirror) Apply(ctx context.Context, idx Index, batch notification.Batch) (Result, error) {
	log := m.log.FromContext(ctx)
	defer log.Close()

	var result Result
	for i, n := range batch {
		category := wallpaper.Classify(n.ObjectKey)
		filename := wallpaper.Filename(n.ObjectKey)
		kind := n.Kind()

		var changed bool
		var err error
		switch kind {
		case notification.Created:
			changed, err = idx.Add(ctx, category, filename)
		case notification.Removed:
			changed, err = idx.Remove(ctx, category, filename)
		default:
			log.Debugf("ignoring %s for %s/%s", n.EventName, n.BucketName, n.ObjectKey)
		}
		if err != nil {
			return result, errhandling.NewTransientError(
				fmt.Errorf("record %d %s %s: %w", i, kind, n.ObjectKey, err))
		}
		// only applied operations are counted
		switch kind {
		case notification.Created:
			result.Added++
		case notification.Removed:
			result.Removed++
		default:
			result.Ignored++
		}
		if changed {
			result.Changed++
		}
		if m.observer != nil {
			m.observer.ObserveNotification(category, kind, changed)
		}
	}
	return result, nil
}
