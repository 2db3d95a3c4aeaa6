package objectstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	s3notify "github.com/minio/minio-go/v7/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/notification"
)

var (
	errBucket = errors.New("bucket gone")
)

type fakeOSSBucket struct {
	pages []oss.ListObjectsResult
	calls int
	err   error
}

func (f *fakeOSSBucket) ListObjects(_ ...oss.Option) (oss.ListObjectsResult, error) {
	if f.err != nil {
		return oss.ListObjectsResult{}, f.err
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func ossPage(truncated bool, next string, keys ...string) oss.ListObjectsResult {
	objects := make([]oss.ObjectProperties, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, oss.ObjectProperties{Key: k})
	}
	return oss.ListObjectsResult{Objects: objects, IsTruncated: truncated, NextMarker: next}
}

type fakeS3Client struct {
	objects []minio.ObjectInfo
	infos   chan s3notify.Info
}

func (f *fakeS3Client) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, o := range f.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func (f *fakeS3Client) ListenBucketNotification(ctx context.Context, _, _, _ string, events []string) <-chan s3notify.Info {
	out := make(chan s3notify.Info)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-f.infos:
				if !ok {
					return
				}
				out <- info
			}
		}
	}()
	return out
}

func s3Record(eventName, key string) s3notify.Event {
	var e s3notify.Event
	e.EventName = eventName
	e.S3.Bucket.Name = "wallpapers"
	e.S3.Object.Key = key
	return e
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(ProviderEnv, "S3")
	t.Setenv(EndpointEnv, "minio:9000")
	t.Setenv(BucketEnv, "wallpapers")
	t.Setenv(UseSSLEnv, "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderS3, cfg.Provider)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, "s3://minio:9000/wallpapers", cfg.String())
	assert.True(t, Configured())
}

func TestConfigValidate(t *testing.T) {
	tables := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"ok", Config{Provider: ProviderOSS, Endpoint: "oss-cn-hangzhou.aliyuncs.com", Bucket: "wallpapers"}, nil},
		{"provider", Config{Provider: "gcs", Endpoint: "e", Bucket: "b"}, ErrUnknownProvider},
		{"endpoint", Config{Provider: ProviderS3, Bucket: "b"}, ErrNoEndpoint},
		{"bucket", Config{Provider: ProviderS3, Endpoint: "e"}, ErrNoBucket},
	}
	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			err := table.cfg.Validate()
			if table.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, table.err)
		})
	}
}

func TestOSSListerPages(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	bucket := &fakeOSSBucket{pages: []oss.ListObjectsResult{
		ossPage(true, "pc/b.jpg", "pc/", "pc/a.jpg", "pc/b.jpg"),
		ossPage(false, "", "pc/c.jpg"),
	}}
	keys, err := NewOSSLister(logger.Sugar, bucket, "wallpapers").List(context.Background(), "pc/")
	require.NoError(t, err)
	assert.Equal(t, []string{"pc/", "pc/a.jpg", "pc/b.jpg", "pc/c.jpg"}, keys)
	assert.Equal(t, 2, bucket.calls)
}

func TestOSSListerError(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	_, err := NewOSSLister(logger.Sugar, &fakeOSSBucket{err: errBucket}, "wallpapers").List(context.Background(), "pc/")
	assert.ErrorIs(t, err, ErrList)
	assert.ErrorIs(t, err, errBucket)
}

func TestS3Lister(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	client := &fakeS3Client{objects: []minio.ObjectInfo{{Key: "mobile/a.png"}, {Key: "mobile/b.png"}}}
	keys, err := NewS3Lister(logger.Sugar, client, "wallpapers").List(context.Background(), "mobile/")
	require.NoError(t, err)
	assert.Equal(t, []string{"mobile/a.png", "mobile/b.png"}, keys)

	client = &fakeS3Client{objects: []minio.ObjectInfo{{Key: "mobile/a.png"}, {Err: errBucket}}}
	_, err = NewS3Lister(logger.Sugar, client, "wallpapers").List(context.Background(), "mobile/")
	assert.ErrorIs(t, err, errBucket)
}

func TestNewListerRejectsConfig(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	_, err := NewLister(logger.Sugar, Config{Provider: "gcs"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestWatcherDeliversBatches(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	var mu sync.Mutex
	var got []notification.Batch
	delivered := make(chan struct{}, 4)
	client := &fakeS3Client{infos: make(chan s3notify.Info)}
	w := NewWatcher(logger.Sugar, client, "wallpapers", func(_ context.Context, batch notification.Batch) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, batch)
		delivered <- struct{}{}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- w.Listen() }()

	client.infos <- s3notify.Info{Records: []s3notify.Event{
		s3Record("s3:ObjectCreated:Put", "pc/golden+hour.jpg"),
	}}
	// missing key, dropped without reaching the handler
	client.infos <- s3notify.Info{Records: []s3notify.Event{s3Record("s3:ObjectCreated:Put", "")}}
	client.infos <- s3notify.Info{Records: []s3notify.Event{
		s3Record("s3:ObjectRemoved:Delete", "mobile/a.png"),
	}}

	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(5 * time.Second):
			t.Fatal("delivery timed out")
		}
	}

	require.NoError(t, w.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, notification.Batch{{EventName: "ObjectCreated:Put", BucketName: "wallpapers", ObjectKey: "pc/golden hour.jpg"}}, got[0])
	assert.Equal(t, notification.Removed, got[1][0].Kind())
}

func TestWatcherStreamError(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	client := &fakeS3Client{infos: make(chan s3notify.Info, 1)}
	client.infos <- s3notify.Info{Err: errBucket}
	w := NewWatcher(logger.Sugar, client, "wallpapers", func(context.Context, notification.Batch) error { return nil })

	err := w.Listen()
	assert.ErrorIs(t, err, errBucket)
	assert.Equal(t, "watcher/wallpapers", w.String())
}
