// Command wallpaper-mirror serves the function runtime's HTTP invocations and
// mirrors object storage events into the wallpaper set index.
//
// Required: REDIS_HOST. Optional: REDIS_PASSWORD, REDIS_PORT, PORT,
// OBJECTSTORE_* to enable /reconcile, OBJECTSTORE_WATCH to stream MinIO
// notifications, USE_METRICS and METRICS_PORT, ZIPKIN_ENDPOINT.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datatrails/go-wallpaper-mirror/environment"
	"github.com/datatrails/go-wallpaper-mirror/httpserver"
	"github.com/datatrails/go-wallpaper-mirror/invoke"
	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/metrics"
	"github.com/datatrails/go-wallpaper-mirror/mirror"
	"github.com/datatrails/go-wallpaper-mirror/notification"
	"github.com/datatrails/go-wallpaper-mirror/objectstore"
	"github.com/datatrails/go-wallpaper-mirror/readiness"
	"github.com/datatrails/go-wallpaper-mirror/reconcile"
	"github.com/datatrails/go-wallpaper-mirror/redis"
	"github.com/datatrails/go-wallpaper-mirror/startup"
	"github.com/datatrails/go-wallpaper-mirror/tracing"
)

const (
	serviceName = "wallpaper-mirror"
	portEnv     = "PORT"
	watchEnv    = "OBJECTSTORE_WATCH"
	rateEnv     = "RECONCILE_RATE_PER_SECOND"
	// comma separated proxies whose X-Forwarded-For is believed
	trustedProxiesEnv = "TRUSTED_PROXIES"

	// first path segments whose requests are counted and timed
	metricsResourcesEnv = "METRICS_RESOURCES"

	connectAttemptsEnv = "REDIS_CONNECT_ATTEMPTS"
	connectInterval    = 2 * time.Second

	// the custom runtime listens on 9000 unless told otherwise
	defaultPort = "9000"
)

func main() {
	startup.Run(serviceName, portEnv, run)
}

func run(log logger.Logger) error {
	gin.SetMode(gin.ReleaseMode)

	redisCfg, err := redis.FromEnv()
	if err != nil {
		return err
	}
	log.Infof("index %s", redisCfg)

	indexReady := func(ctx context.Context) error {
		err := redis.Ping(ctx, log, redisCfg)
		if errors.Is(err, redis.ErrNoHost) {
			return readiness.NewUnrecoverableError(err)
		}
		return err
	}
	err = readiness.Repeat(
		context.Background(), log,
		environment.GetIntWithDefault(connectAttemptsEnv, 5), connectInterval,
		indexReady,
	)
	if err != nil {
		return err
	}

	var metricsOpts []metrics.MetricsOption
	for _, resource := range environment.GetListWithDefault(metricsResourcesEnv, []string{"invoke", "reconcile"}) {
		metricsOpts = append(metricsOpts, metrics.WithLabel(resource, 0))
	}
	m, err := metrics.NewFromEnvironment(log, serviceName, metricsOpts...)
	if err != nil {
		return err
	}

	var mirrorOpts []mirror.MirrorOption
	if m != nil {
		mirrorOpts = append(mirrorOpts, mirror.WithObserver(metrics.NewMirrorObservers(m)))
	}
	mir, err := mirror.New(log, mirror.Config{Redis: redisCfg}, mirrorOpts...)
	if err != nil {
		return err
	}

	var listeners []startup.Listener
	handlerOpts := []invoke.HandlersOption{
		invoke.WithReadyCheck(indexReady),
		invoke.WithRateLimiter(invoke.NewRateLimiter(log, environment.GetIntWithDefault(rateEnv, 5))),
		invoke.WithTrustedProxies(environment.GetListWithDefault(trustedProxiesEnv, nil)...),
	}

	if objectstore.Configured() {
		storeCfg, err := objectstore.FromEnv()
		if err != nil {
			return err
		}
		lister, err := objectstore.NewLister(log, storeCfg)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, invoke.WithReconciler(
			reconcile.New(log, lister, reconcile.RedisDialer(log, redisCfg)),
		))

		if storeCfg.Provider == objectstore.ProviderS3 && environment.GetTruthy(watchEnv) {
			client, err := objectstore.NewS3Client(storeCfg)
			if err != nil {
				return err
			}
			listeners = append(listeners, objectstore.NewWatcher(log, client, storeCfg.Bucket,
				func(ctx context.Context, batch notification.Batch) error {
					_, err := mir.HandleBatch(ctx, batch)
					return err
				},
			))
		}
	}

	h := invoke.NewHandlers(log, mir, handlerOpts...)
	listeners = append(listeners,
		httpserver.New(
			log, "invoke", environment.GetWithDefault(portEnv, defaultPort), h.Router(),
			httpserver.WithMiddleware(tracing.HTTPMiddleware, m.NewLatencyMetricsHandler),
		),
		h.RateLimiter(),
	)
	if m != nil {
		listeners = append(listeners, httpserver.New(log, "metrics", m.Port(), m.NewPromHandler()))
	}

	l := startup.NewListeners(log, serviceName, startup.WithListeners(listeners))
	return l.Listen()
}
