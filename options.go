package xeno

import (
	"io"
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel/metric"

	"github.com/exynostools/xeno/internal/augment"
	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/driver/dl"
	"github.com/exynostools/xeno/internal/frames"
	"github.com/exynostools/xeno/internal/host"
	"github.com/exynostools/xeno/internal/remote"
	"github.com/exynostools/xeno/internal/vk"
)

// DefaultMemoSize is the number of blobs kept in memory in front of the cache directory.
const DefaultMemoSize = 256

// Authenticator provides credentials for remote registries.
type Authenticator = remote.Authenticator

type options struct {
	loader      driver.Loader
	candidates  []string
	configPaths []string
	settings    *config.Settings
	cacheDir    string
	prober      host.Prober
	tuner       host.Tuner
	logger      *slog.Logger
	meter       metric.MeterProvider
	clock       frames.Clock
	policy      *augment.Policy
	procs       map[string]vk.VoidFunction
	memoSize    int

	auth        Authenticator
	concurrency int
	progress    io.Writer
}

// Option configures a Wrapper or a Sync.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		loader:      dl.NewLoader(),
		candidates:  driver.DefaultCandidates,
		configPaths: config.DefaultPaths,
		prober:      host.NewFileProber(host.DefaultDescriptor),
		tuner:       host.NewPriorityTuner(),
		logger:      newNopLogger(),
		clock:       frames.SystemClock,
		memoSize:    DefaultMemoSize,
		concurrency: remote.DefaultConcurrency,
		progress:    io.Discard,
	}
}

// WithLoader sets how driver libraries are opened.
func WithLoader(l driver.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithDriverCandidates replaces the ordered list of driver libraries tried.
func WithDriverCandidates(paths ...string) Option {
	return func(o *options) { o.candidates = paths }
}

// WithConfigPaths replaces the config sources, in priority order.
func WithConfigPaths(paths ...string) Option {
	return func(o *options) { o.configPaths = paths }
}

// WithSettings uses s instead of reading config sources.
func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = &s }
}

// WithCacheDir overrides the configured shader cache directory.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithProber sets the host probe.
func WithProber(p host.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithTuner sets the tuning applied on the specialized hardware.
func WithTuner(t host.Tuner) Option {
	return func(o *options) { o.tuner = t }
}

// WithLogger enables logging. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = newNopLogger()
		}
		o.logger = l
	}
}

// WithMeterProvider enables OpenTelemetry metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// WithClock sets the clock used for frame timing.
func WithClock(c frames.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPolicy overrides the augmentation policy derived from settings.
func WithPolicy(p augment.Policy) Option {
	return func(o *options) { o.policy = &p }
}

// WithProcOverrides registers the interposer's own addresses for intercepted entry
// points. Proc-address queries for these names return them instead of the driver's.
func WithProcOverrides(procs map[string]vk.VoidFunction) Option {
	return func(o *options) { o.procs = maps.Clone(procs) }
}

// WithMemoSize sets how many blobs are memoized in memory. Zero disables the memo.
func WithMemoSize(n int) Option {
	return func(o *options) { o.memoSize = n }
}

// WithAuth sets custom registry authentication.
func WithAuth(auth Authenticator) Option {
	return func(o *options) { o.auth = auth }
}

// WithConcurrency sets the number of parallel operations for push/pull.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithProgress directs push/pull progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}
