// Package metrics exports interposer counters through OpenTelemetry.
package metrics

import (
	"context"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScopeName is the instrumentation scope of every instrument.
const ScopeName = "github.com/exynostools/xeno"

// Recorder records interposer activity.
//
// Implementations must be safe for concurrent use and must not block the calling
// entry point.
type Recorder interface {
	// CacheLookup records a blob store lookup.
	CacheLookup(ctx context.Context, hit bool)
	// CacheStore records a blob written to the store.
	CacheStore(ctx context.Context, size int)
	// Frame records one presented frame.
	Frame(ctx context.Context)
	// FrameRate publishes the latest instantaneous and smoothed frame rates.
	FrameRate(fps, avg float64)
	// DriverFailure records a failing result returned to the application.
	DriverFailure(ctx context.Context, entryPoint string, result string)
}

type recorder struct {
	lookups  metric.Int64Counter
	stores   metric.Int64Counter
	stored   metric.Int64Counter
	frames   metric.Int64Counter
	failures metric.Int64Counter

	fps atomic.Uint64
	avg atomic.Uint64
}

var (
	hitAttr  = metric.WithAttributes(attribute.String("cache.result", "hit"))
	missAttr = metric.WithAttributes(attribute.String("cache.result", "miss"))
)

// New creates a Recorder on provider. A nil provider yields a no-op recorder.
func New(provider metric.MeterProvider) (Recorder, error) {
	if provider == nil {
		return Noop(), nil
	}
	return newRecorder(provider.Meter(ScopeName))
}

func newRecorder(meter metric.Meter) (*recorder, error) {
	r := &recorder{}
	var err error

	if r.lookups, err = meter.Int64Counter(
		"xeno.cache.lookups",
		metric.WithDescription("Shader cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if r.stores, err = meter.Int64Counter(
		"xeno.cache.stores",
		metric.WithDescription("Shader blobs written to the cache"),
		metric.WithUnit("{blob}"),
	); err != nil {
		return nil, err
	}
	if r.stored, err = meter.Int64Counter(
		"xeno.cache.stored_bytes",
		metric.WithDescription("Bytes of shader blobs written to the cache"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if r.frames, err = meter.Int64Counter(
		"xeno.frames.presented",
		metric.WithDescription("Frames passed through queue present"),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if r.failures, err = meter.Int64Counter(
		"xeno.driver.failures",
		metric.WithDescription("Entry point calls that returned an error result"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	fps, err := meter.Float64ObservableGauge(
		"xeno.frames.fps",
		metric.WithDescription("Frame rate over the last completed second"),
		metric.WithUnit("{frame}/s"),
	)
	if err != nil {
		return nil, err
	}
	avg, err := meter.Float64ObservableGauge(
		"xeno.frames.fps_avg",
		metric.WithDescription("Exponentially smoothed frame rate"),
		metric.WithUnit("{frame}/s"),
	)
	if err != nil {
		return nil, err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(fps, math.Float64frombits(r.fps.Load()))
		o.ObserveFloat64(avg, math.Float64frombits(r.avg.Load()))
		return nil
	}, fps, avg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *recorder) CacheLookup(ctx context.Context, hit bool) {
	if hit {
		r.lookups.Add(ctx, 1, hitAttr)
		return
	}
	r.lookups.Add(ctx, 1, missAttr)
}

func (r *recorder) CacheStore(ctx context.Context, size int) {
	r.stores.Add(ctx, 1)
	r.stored.Add(ctx, int64(size))
}

func (r *recorder) Frame(ctx context.Context) {
	r.frames.Add(ctx, 1)
}

func (r *recorder) FrameRate(fps, avg float64) {
	r.fps.Store(math.Float64bits(fps))
	r.avg.Store(math.Float64bits(avg))
}

func (r *recorder) DriverFailure(ctx context.Context, entryPoint string, result string) {
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("vk.entry_point", entryPoint),
		attribute.String("vk.result", result),
	))
}

// Noop returns a Recorder backed by the OpenTelemetry no-op provider.
func Noop() Recorder {
	r, err := newRecorder(noop.NewMeterProvider().Meter(ScopeName))
	if err != nil {
		return nopRecorder{}
	}
	return r
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(context.Context, bool)             {}
func (nopRecorder) CacheStore(context.Context, int)               {}
func (nopRecorder) Frame(context.Context)                         {}
func (nopRecorder) FrameRate(float64, float64)                    {}
func (nopRecorder) DriverFailure(context.Context, string, string) {}
