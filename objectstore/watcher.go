package objectstore

import (
	"context"
	"fmt"

	"github.com/datatrails/go-wallpaper-mirror/notification"
)

var (
	watchedEvents = []string{
		"s3:ObjectCreated:*",
		"s3:ObjectRemoved:*",
	}
)

// BatchHandler applies one delivered batch.
type BatchHandler func(ctx context.Context, batch notification.Batch) error

// Watcher streams bucket notifications from an S3 compatible store and hands
// each delivery to a BatchHandler. It satisfies startup.Listener.
//
// A delivery that fails to convert or apply is logged and dropped, the
// stream cannot be replayed. Reconcile repairs whatever was missed.
type Watcher struct {
	log     Logger
	client  S3Client
	bucket  string
	handler BatchHandler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewWatcher(log Logger, client S3Client, bucket string, handler BatchHandler) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		log:     log.WithIndex("watcher", bucket),
		client:  client,
		bucket:  bucket,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Watcher) String() string {
	return "watcher/" + w.bucket
}

// Listen blocks until Shutdown is called or the notification stream fails.
func (w *Watcher) Listen() error {
	w.log.Infof("Listen")
	infos := w.client.ListenBucketNotification(w.ctx, w.bucket, "", "", watchedEvents)
	for info := range infos {
		if info.Err != nil {
			if w.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s terminated: %w", w, info.Err)
		}
		if len(info.Records) == 0 {
			continue
		}
		batch, err := notification.FromS3Records(info.Records)
		if err != nil {
			w.log.Infof("dropping delivery of %d records: %v", len(info.Records), err)
			continue
		}
		if err := w.handler(w.ctx, batch); err != nil {
			w.log.Infof("delivery of %d records failed: %v", len(batch), err)
		}
	}
	return nil
}

// Shutdown stops the notification stream. Listen returns once the stream has
// drained.
func (w *Watcher) Shutdown(_ context.Context) error {
	w.log.Infof("Shutdown")
	w.cancel()
	return nil
}
