package xeno

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/exynostools/xeno/internal/augment"
	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/frames"
	"github.com/exynostools/xeno/internal/metrics"
	"github.com/exynostools/xeno/internal/store"
	"github.com/exynostools/xeno/internal/vk"
)

// Wrapper is the process-wide interposer context. Construct one with New; it binds
// the driver lazily on first use.
type Wrapper struct {
	opts *options
	log  *slog.Logger

	once   sync.Once
	loaded atomic.Bool

	// Written once inside once.Do, read-only afterwards.
	settings    *config.Live
	source      string
	configErr   error
	specialized bool
	drv         *driver.Driver
	table       driver.Table
	bindErr     error
	blobs       *store.LocalStore
	augmenter   *augment.Augmenter

	frames  *frames.Counter
	metrics metrics.Recorder
}

// New returns an unbound Wrapper.
func New(opts ...Option) *Wrapper {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	rec, err := metrics.New(o.meter)
	if err != nil {
		o.logger.Warn("metrics disabled", "err", err)
		rec = metrics.Noop()
	}

	return &Wrapper{
		opts:     o,
		log:      o.logger,
		settings: config.NewLive(config.Default()),
		frames:   frames.NewCounter(o.clock, o.logger),
		metrics:  rec,
	}
}

// ensureLoaded binds the driver. It runs once per Wrapper; concurrent callers wait
// for the first to finish.
func (w *Wrapper) ensureLoaded() {
	w.once.Do(func() {
		w.loaded.Store(true)
		w.load()
	})
}

func (w *Wrapper) load() {
	// 1. Settings
	s := config.Default()
	if w.opts.settings != nil {
		s = *w.opts.settings
		w.source = "options"
	} else {
		s, w.source, w.configErr = config.Load(w.opts.configPaths)
		if w.configErr != nil {
			w.log.Warn("config partially applied", "source", w.source, "err", w.configErr)
		}
	}
	if w.opts.cacheDir != "" {
		s.CacheDir = w.opts.cacheDir
	}
	w.settings.Replace(s)
	if w.source != "" {
		w.log.Info("loaded settings", "source", w.source, "mode", s.PerformanceMode.String())
	}

	// 2. Host probe
	w.specialized = w.opts.prober != nil && w.opts.prober.Probe()
	if w.specialized {
		w.log.Info("specialized hardware detected, enabling optimizations")
	}

	// 3, 4. Driver
	w.drv, w.bindErr = driver.Bind(w.opts.loader, w.opts.candidates, w.log)
	if w.bindErr != nil {
		w.log.Warn("no vendor driver found, running degraded", "err", w.bindErr)
	} else {
		w.table = w.drv.Table
	}

	// 5. Tuning
	if w.specialized && w.opts.tuner != nil {
		if err := w.opts.tuner.Tune(); err != nil {
			w.log.Debug("process tuning not applied", "err", err)
		}
	}

	policy := augment.PolicyFor(s.SyntheticExtensions, s.FeatureOverrides)
	if w.opts.policy != nil {
		policy = *w.opts.policy
	}
	w.augmenter = augment.New(policy, w.log)

	blobs, err := store.NewLocalStore(s.CacheDir, w.opts.memoSize, 0, s.CacheCompression)
	if err != nil {
		w.log.Warn("shader cache unavailable", "dir", s.CacheDir, "err", err)
	} else {
		w.blobs = blobs
	}
}

// Status describes the bound state.
type Status struct {
	ConfigSource string
	ConfigError  error
	Settings     config.Settings
	Specialized  bool
	DriverPath   string
	BindError    error
	EntryPoints  []EntryPointStatus
	AverageFPS   float64
}

// EntryPointStatus reports whether one entry point resolved on the driver.
type EntryPointStatus struct {
	Symbol    string
	Available bool
}

// Degraded reports whether no driver is bound.
func (s Status) Degraded() bool { return s.DriverPath == "" }

// Status binds the driver if needed and reports the result.
func (w *Wrapper) Status() Status {
	w.ensureLoaded()

	st := Status{
		ConfigSource: w.source,
		ConfigError:  w.configErr,
		Settings:     w.settings.Snapshot(),
		Specialized:  w.specialized,
		BindError:    w.bindErr,
		AverageFPS:   w.frames.Average(),
	}
	if w.drv != nil {
		st.DriverPath = w.drv.Module.Path()
	}
	for _, ep := range driver.EntryPoints() {
		st.EntryPoints = append(st.EntryPoints, EntryPointStatus{
			Symbol:    ep.String(),
			Available: w.table.Has(ep),
		})
	}
	return st
}

// Settings returns the current settings.
func (w *Wrapper) Settings() config.Settings {
	w.ensureLoaded()
	return w.settings.Snapshot()
}

// Specialized reports whether the host matched the specialized hardware probe.
func (w *Wrapper) Specialized() bool {
	w.ensureLoaded()
	return w.specialized
}

// Close releases the shader cache. The driver stays loaded. Closing an unused
// Wrapper binds nothing.
func (w *Wrapper) Close() error {
	if !w.loaded.Load() {
		return nil
	}
	w.ensureLoaded()
	if w.blobs == nil {
		return nil
	}
	return w.blobs.Close()
}

func (w *Wrapper) result(ep driver.EntryPoint, res vk.Result) vk.Result {
	if !res.Succeeded() {
		w.metrics.DriverFailure(context.Background(), ep.String(), res.String())
	}
	return res
}

func (w *Wrapper) unavailable(ep driver.EntryPoint) vk.Result {
	return w.result(ep, vk.ErrorInitializationFailed)
}
