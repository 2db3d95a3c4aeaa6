package mirror

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-wallpaper-mirror/errhandling"
	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/notification"
	"github.com/datatrails/go-wallpaper-mirror/redis"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

var (
	errStore = errors.New("store unavailable")
)

func testConfig(t *testing.T) (Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return Config{Redis: redis.Config{Host: mr.Host(), Port: port}}, mr
}

func newTestMirror(t *testing.T, opts ...MirrorOption) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	logger.New("NOOP")
	t.Cleanup(logger.OnExit)

	cfg, mr := testConfig(t)
	m, err := New(logger.Sugar, cfg, opts...)
	require.NoError(t, err)
	return m, mr
}

// fakeIndex records calls and fails on demand.
type fakeIndex struct {
	added   []string
	removed []string
	closed  int
	failAt  int
	calls   int
}

func (f *fakeIndex) mutate(into *[]string, c wallpaper.Category, filename string) (bool, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return false, errStore
	}
	*into = append(*into, c.String()+"/"+filename)
	return true, nil
}

func (f *fakeIndex) Add(_ context.Context, c wallpaper.Category, filename string) (bool, error) {
	return f.mutate(&f.added, c, filename)
}

func (f *fakeIndex) Remove(_ context.Context, c wallpaper.Category, filename string) (bool, error) {
	return f.mutate(&f.removed, c, filename)
}

func (f *fakeIndex) Close() error {
	f.closed++
	return nil
}

type recordingObserver struct {
	changed map[string]int
	batches int
	lastErr error
}

func (o *recordingObserver) ObserveNotification(c wallpaper.Category, kind notification.Kind, changed bool) {
	if changed {
		o.changed[c.String()+"/"+kind.String()]++
	}
}

func (o *recordingObserver) ObserveBatch(_ time.Duration, err error) {
	o.batches++
	o.lastErr = err
}

func created(key string) notification.Notification {
	return notification.Notification{EventName: "ObjectCreated:PutObject", BucketName: "wallpapers", ObjectKey: key}
}

func removed(key string) notification.Notification {
	return notification.Notification{EventName: "ObjectRemoved:DeleteObject", BucketName: "wallpapers", ObjectKey: key}
}

func TestNewRequiresHost(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	_, err := New(logger.Sugar, Config{})
	assert.ErrorIs(t, err, redis.ErrNoHost)
}

func TestHandleBatchCreated(t *testing.T) {
	m, mr := newTestMirror(t)

	result, err := m.HandleBatch(context.Background(), notification.Batch{created("pc/sunset.jpg")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Changed)
	assert.NotEmpty(t, result.InvocationID)

	ok, err := mr.IsMember("wallpaper:pc", "sunset.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Placeholder objects are mirrored like any other. Only reconcile drops them.
func TestHandleBatchPlaceholderKeys(t *testing.T) {
	m, mr := newTestMirror(t)

	result, err := m.HandleBatch(context.Background(), notification.Batch{
		created("pc/.alist"),
		created("pc/"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)

	members, err := mr.Members("wallpaper:pc")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"", ".alist"}, members)
}

func TestHandleBatchRemoved(t *testing.T) {
	m, mr := newTestMirror(t)
	_, err := mr.SetAdd("wallpaper:mobile", "lockscreen.png", "other.png")
	require.NoError(t, err)

	result, err := m.HandleBatch(context.Background(), notification.Batch{removed("mobile/lockscreen.png")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Changed)

	members, err := mr.Members("wallpaper:mobile")
	require.NoError(t, err)
	assert.Equal(t, []string{"other.png"}, members)
}

func TestHandleBatchIgnored(t *testing.T) {
	m, mr := newTestMirror(t)

	result, err := m.HandleBatch(context.Background(), notification.Batch{
		{EventName: "ObjectArchived:Something", BucketName: "wallpapers", ObjectKey: "pc/sunset.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ignored)
	assert.Equal(t, 0, result.Changed)
	assert.False(t, mr.Exists("wallpaper:pc"))
	assert.False(t, mr.Exists("wallpaper:mobile"))
}

func TestHandleBatchIdempotent(t *testing.T) {
	m, mr := newTestMirror(t)
	batch := notification.Batch{created("pc/sunset.jpg")}

	_, err := m.HandleBatch(context.Background(), batch)
	require.NoError(t, err)
	result, err := m.HandleBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, result.Changed)

	members, err := mr.Members("wallpaper:pc")
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset.jpg"}, members)
}

func TestHandleBatchOrdered(t *testing.T) {
	m, mr := newTestMirror(t)

	// keys without the pc/ prefix land in the mobile set
	result, err := m.HandleBatch(context.Background(), notification.Batch{
		created("pc/a.jpg"),
		created("portrait/b.jpg"),
		removed("pc/a.jpg"),
		created("pc/nested/dir/c.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, result.Removed)

	pc, err := mr.Members("wallpaper:pc")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.jpg"}, pc)

	mobile, err := mr.Members("wallpaper:mobile")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, mobile)
}

func TestHandleBatchMalformedMutatesNothing(t *testing.T) {
	dialled := 0
	m, mr := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		dialled++
		return &fakeIndex{}, nil
	}))

	_, err := m.HandleBatch(context.Background(), notification.Batch{
		created("pc/sunset.jpg"),
		{EventName: "ObjectCreated:PutObject", BucketName: "wallpapers"},
	})
	require.ErrorIs(t, err, notification.ErrMalformed)
	assert.False(t, errhandling.IsTransient(err))
	assert.Equal(t, 0, dialled)
	assert.False(t, mr.Exists("wallpaper:pc"))
}

func TestHandleBatchEmpty(t *testing.T) {
	dialled := 0
	m, _ := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		dialled++
		return &fakeIndex{}, nil
	}))

	result, err := m.HandleBatch(context.Background(), notification.Batch{})
	require.NoError(t, err)
	assert.Equal(t, Result{InvocationID: result.InvocationID}, result)
	assert.Equal(t, 0, dialled)
}

func TestHandleBatchStoreErrorStopsAndCloses(t *testing.T) {
	idx := &fakeIndex{failAt: 2}
	m, _ := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		return idx, nil
	}))

	result, err := m.HandleBatch(context.Background(), notification.Batch{
		created("pc/a.jpg"),
		removed("mobile/b.png"),
		created("pc/c.jpg"),
	})
	require.ErrorIs(t, err, errStore)
	assert.True(t, errhandling.IsTransient(err))
	assert.Equal(t, []string{"pc/a.jpg"}, idx.added)
	assert.Empty(t, idx.removed)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 1, idx.closed)
}

func TestHandleBatchFailedAddNotCounted(t *testing.T) {
	idx := &fakeIndex{failAt: 1}
	m, _ := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		return idx, nil
	}))

	result, err := m.HandleBatch(context.Background(), notification.Batch{created("pc/a.jpg")})
	require.ErrorIs(t, err, errStore)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Changed)
}

func TestHandleBatchClosesOnSuccess(t *testing.T) {
	idx := &fakeIndex{}
	m, _ := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		return idx, nil
	}))

	_, err := m.HandleBatch(context.Background(), notification.Batch{created("pc/a.jpg")})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.closed)
}

func TestHandleBatchDialError(t *testing.T) {
	m, _ := newTestMirror(t, WithDialer(func(context.Context) (Index, error) {
		return nil, errStore
	}))

	_, err := m.HandleBatch(context.Background(), notification.Batch{created("pc/a.jpg")})
	assert.ErrorIs(t, err, errStore)
	assert.True(t, errhandling.IsTransient(err))
}

func TestHandleBatchUnreachableStore(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	cfg, mr := testConfig(t)
	mr.Close()
	m, err := New(logger.Sugar, cfg)
	require.NoError(t, err)

	_, err = m.HandleBatch(context.Background(), notification.Batch{created("pc/a.jpg")})
	assert.ErrorIs(t, err, redis.ErrRedisConnect)
	assert.True(t, errhandling.IsTransient(err))
}

func TestHandleBatchObserver(t *testing.T) {
	o := &recordingObserver{changed: map[string]int{}}
	m, _ := newTestMirror(t, WithObserver(o))

	_, err := m.HandleBatch(context.Background(), notification.Batch{
		created("pc/a.jpg"),
		created("pc/a.jpg"),
		removed("mobile/b.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pc/created": 1}, o.changed)
	assert.Equal(t, 1, o.batches)
	assert.NoError(t, o.lastErr)
}

func TestHandleEvent(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := WithInvocationID(context.Background(), "req-1")

	payload := []byte(`{"events":[
		{"eventName":"ObjectCreated:PutObject","oss":{"bucket":{"name":"wallpapers"},"object":{"key":"pc/sunset.jpg"}}},
		{"eventName":"ObjectCreated:PostObject","oss":{"bucket":{"name":"wallpapers"},"object":{"key":"mobile/lockscreen.png"}}}
	]}`)
	result, err := m.HandleEvent(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "req-1", result.InvocationID)
	assert.Equal(t, 2, result.Added)

	ok, err := mr.IsMember("wallpaper:mobile", "lockscreen.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleEventMalformed(t *testing.T) {
	m, _ := newTestMirror(t)

	_, err := m.HandleEvent(context.Background(), []byte(`{"records":[]}`))
	assert.ErrorIs(t, err, notification.ErrMalformed)
}

func TestInvocationID(t *testing.T) {
	assert.Equal(t, "abc", InvocationID(WithInvocationID(context.Background(), "abc")))
	assert.NotEqual(t, InvocationID(context.Background()), InvocationID(context.Background()))
}
