package logger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/natefinch/lumberjack"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	Plain        *zap.Logger
	Sugar        *WrappedLogger
	undoLogger   func()
	undoMaxProcs func()
	Recorded     *observer.ObservedLogs
)

const (
	serviceNameKey = "servicename"
	// repeated here to avoid importing the tracing package
	TraceIDKey = "x-b3-traceid"

	// rotation defaults for file output
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// so we dont have to import zap everywhere
type Option = zap.Option

type WrappedLogger struct {
	*zap.SugaredLogger
}

func keyValues(args []any) []any {
	keyVals := make([]any, 0, 2*len(args))
	for i, v := range args {
		keyVals = append(keyVals, fmt.Sprintf("arg%d", i), v)
	}
	return keyVals
}

func (wl *WrappedLogger) DebugR(msg string, args ...any) {
	wl.SugaredLogger.WithOptions(zap.AddCallerSkip(1)).Debugw(msg, keyValues(args)...)
}

// OnExit should be deferred immediately after calling New().
func OnExit() {
	if Sugar != nil {
		_ = Sugar.Sync()
	}
	if Plain != nil {
		_ = Plain.Sync()
	}
	if undoMaxProcs != nil {
		undoMaxProcs()
	}
	if undoLogger != nil {
		undoLogger()
	}
	Recorded = nil
}

// Resource holds the output options for New.
type Resource struct {
	console  bool
	filename string
}

type ResourceOption func(*Resource)

// WithFile writes log output to filename, rotated by size.
func WithFile(filename string) ResourceOption {
	return func(r *Resource) {
		r.filename = filename
	}
}

func WithConsole() ResourceOption {
	return func(r *Resource) {
		r.console = true
	}
}

func (r *Resource) apply(cfg *zap.Config) {
	if r.console {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zapcore.EncoderConfig{
			MessageKey: "message",
		}
	}
}

// build constructs a logger from cfg. When a filename is configured the output
// is routed through a lumberjack rotating writer instead of cfg.OutputPaths.
func (r *Resource) build(cfg zap.Config, zopts ...zap.Option) (*zap.Logger, error) {
	r.apply(&cfg)
	if r.filename == "" {
		return cfg.Build(zopts...)
	}

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   r.filename,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewCore(encoder, sink, cfg.Level)
	return zap.New(core, append([]zap.Option{zap.AddCaller()}, zopts...)...), nil
}

// New creates 2 loggers (plain and sugared) as global variables according
// to the desired loglevel ("DEBUG", "NOOP", "TEST", default is "INFO").
// Log output from the standard library logger is redirected to INFO.
// Both ResourceOption and zap.Option types are accepted.
func New(level string, opts ...any) {
	r := &Resource{}

	var zopts []zap.Option
	for _, iopt := range opts {
		switch opt := iopt.(type) {
		case ResourceOption:
			opt(r)
		case zap.Option:
			zopts = append(zopts, opt)
		}
	}

	var err error
	switch strings.ToUpper(level) {
	case DebugLevel:
		Plain, err = r.build(zap.NewDevelopmentConfig(), zopts...)

	case NoopLevel:
		Plain = zap.NewNop()

	case TestLevel:
		core, recorded := observer.New(zapcore.DebugLevel)
		ram := zap.WrapCore(
			func(zapcore.Core) zapcore.Core {
				return core
			},
		)
		var plain *zap.Logger
		plain, err = r.build(zap.NewDevelopmentConfig(), zopts...)
		if err == nil {
			Plain = plain.WithOptions(ram)
			Recorded = recorded
		}

	default:
		Plain, err = r.build(zap.NewProductionConfig(), zopts...)
	}
	if err != nil {
		log.Panicf("cannot initialise zap logger: %v", err)
	}

	undoLogger = zap.RedirectStdLog(Plain)
	Sugar = &WrappedLogger{
		Plain.Sugar(),
	}

	Sugar.Debugf("Go version %s", runtime.Version())

	// GOMAXPROCS follows the cgroup cpu quota rather than the host core count.
	Sugar.Debugf("Cores allocation GOMAXPROCS %v", runtime.GOMAXPROCS(-1))
	undoMaxProcs, err = maxprocs.Set(maxprocs.Logger(Sugar.Debugf))
	if err != nil {
		Sugar.Infof("Error for automaxprocs: %v", err)
	}
	Sugar.Debugf("Cores allocation GOMAXPROCS %v", runtime.GOMAXPROCS(-1))

	// automemlimit sets GOMEMLIMIT to 90% of the cgroup limit unless AUTOMEMLIMIT=off
	Sugar.Debugf("Memory Limit GOMEMLIMIT %v", debug.SetMemoryLimit(-1))
}

// FromContext returns a child logger carrying the trace ID of the span in ctx,
// or wl itself when there is no span.
func (wl *WrappedLogger) FromContext(ctx context.Context) *WrappedLogger {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return wl
	}
	carrier := opentracing.TextMapCarrier{}
	err := opentracing.GlobalTracer().Inject(span.Context(), opentracing.TextMap, carrier)
	if err != nil {
		wl.Debugf("FromContext: can't inject span: %v", err)
		return wl
	}

	traceID, found := carrier[TraceIDKey]
	if !found || traceID == "" {
		return wl
	}
	return &WrappedLogger{
		SugaredLogger: wl.With(zap.String(TraceIDKey, traceID)),
	}
}

func (wl *WrappedLogger) WithServiceName(servicename string) *WrappedLogger {
	return wl.WithIndex(serviceNameKey, servicename)
}

func (wl *WrappedLogger) WithIndex(key, value string) *WrappedLogger {
	return &WrappedLogger{
		SugaredLogger: wl.With(zap.String(key, strings.ToLower(value))),
	}
}

func (wl *WrappedLogger) WithOptions(opts ...Option) *WrappedLogger {
	return &WrappedLogger{
		SugaredLogger: wl.SugaredLogger.WithOptions(opts...),
	}
}

// Close attempts to flush any buffered log entries.
func (wl *WrappedLogger) Close() {
	err := wl.Sync()

	// usually 'sync /dev/stderr: invalid argument' which is pointless
	if err != nil && !errors.Is(err, syscall.EINVAL) {
		wl.Debugf("Close: Failed to flush log: %v", err)
	}
}
