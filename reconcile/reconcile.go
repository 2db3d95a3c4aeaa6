// Package reconcile rebuilds the wallpaper set index from a bucket listing.
//
// The mirror only sees the changes it is notified about. Reconcile is the
// repair path: it lists every object under a category's prefix and swaps the
// category set for the listed filenames in one transaction.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	otrace "github.com/opentracing/opentracing-go"

	"github.com/datatrails/go-wallpaper-mirror/errhandling"
	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/redis"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

type Logger = logger.Logger

// Lister returns the keys of every object under prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store is the part of the set index a rebuild needs.
type Store interface {
	Replace(ctx context.Context, c wallpaper.Category, filenames []string) error
	Close() error
}

type Dialer func(ctx context.Context) (Store, error)

// RedisDialer dials a fresh redis set index per rebuild.
func RedisDialer(log Logger, cfg redis.Config) Dialer {
	return func(ctx context.Context) (Store, error) {
		idx, err := redis.NewSetIndex(ctx, log, cfg)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
}

// Counts is the number of filenames written per category.
type Counts map[wallpaper.Category]int

type Reconciler struct {
	log    Logger
	lister Lister
	dial   Dialer
}

func New(log Logger, lister Lister, dial Dialer) *Reconciler {
	return &Reconciler{
		log:    log.WithIndex("component", "reconcile"),
		lister: lister,
		dial:   dial,
	}
}

// Filenames maps listed keys to the sorted, de-duplicated filenames of the
// wallpapers among them. Directory markers and .alist files are dropped.
func Filenames(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	filenames := make([]string, 0, len(keys))
	for _, key := range keys {
		if wallpaper.IsPlaceholder(key) {
			continue
		}
		f := wallpaper.Filename(key)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		filenames = append(filenames, f)
	}
	sort.Strings(filenames)
	return filenames
}

// Reconcile rebuilds the sets of the given categories, or of every category
// when none are given. An empty listing leaves the category set empty.
func (r *Reconciler) Reconcile(ctx context.Context, categories ...wallpaper.Category) (Counts, error) {
	span, ctx := otrace.StartSpanFromContext(ctx, "reconcile.Reconcile")
	defer span.Finish()

	log := r.log.FromContext(ctx)
	defer log.Close()

	if len(categories) == 0 {
		categories = wallpaper.Categories()
	}

	// list everything first so a listing failure leaves the index untouched
	listed := make(map[wallpaper.Category][]string, len(categories))
	for _, c := range categories {
		keys, err := r.lister.List(ctx, c.Prefix())
		if err != nil {
			return nil, errhandling.NewTransientError(fmt.Errorf("list %s: %w", c.Prefix(), err))
		}
		listed[c] = Filenames(keys)
		log.Debugf("listed %d keys under %s, %d wallpapers", len(keys), c.Prefix(), len(listed[c]))
	}

	store, err := r.dial(ctx)
	if err != nil {
		return nil, errhandling.NewTransientError(err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Infof("release index: %v", cerr)
		}
	}()

	// only the sets are rebuilt, read side caches are not ours to drop
	counts := make(Counts, len(categories))
	for _, c := range categories {
		if err := store.Replace(ctx, c, listed[c]); err != nil {
			return counts, errhandling.NewTransientError(err)
		}
		counts[c] = len(listed[c])
		log.Infof("rebuilt %s with %d wallpapers", c, counts[c])
	}
	return counts, nil
}
