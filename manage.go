package xeno

import (
	"context"
	"fmt"

	"github.com/exynostools/xeno/internal/config"
)

// SetPerformanceMode switches the mode used by later swapchain creations and frame
// logs. Unknown modes are rejected.
func (w *Wrapper) SetPerformanceMode(m config.PerformanceMode) error {
	w.ensureLoaded()
	if !m.Valid() {
		w.log.Warn("ignoring unknown performance mode", "mode", int32(m))
		return fmt.Errorf("xeno: unknown performance mode %d", int32(m))
	}
	w.settings.SetPerformanceMode(m)
	w.log.Info("performance mode set", "mode", m.String())
	return nil
}

// EnableEmulation toggles BC texture compression emulation.
func (w *Wrapper) EnableEmulation(on bool) {
	w.ensureLoaded()
	w.settings.SetEmulationEnabled(on)
	w.log.Info("BC4 emulation toggled", "enabled", on)
}

// AverageFPS returns the smoothed frame rate. It never binds the driver.
func (w *Wrapper) AverageFPS() float64 {
	return w.frames.Average()
}

// ShaderCacheGet returns the blob cached for key. A disabled cache, an empty key and
// any I/O error are misses.
func (w *Wrapper) ShaderCacheGet(key []byte) ([]byte, bool) {
	w.ensureLoaded()
	if !w.settings.ShaderCacheEnabled() || w.blobs == nil || len(key) == 0 {
		return nil, false
	}

	blob, ok := w.blobs.Get(key)
	w.metrics.CacheLookup(context.Background(), ok)
	if ok {
		w.log.Debug("shader cache hit", "bytes", len(blob))
	}
	return blob, ok
}

// ShaderCachePut caches blob for key. Write failures are logged and dropped.
func (w *Wrapper) ShaderCachePut(key, blob []byte) {
	w.ensureLoaded()
	if !w.settings.ShaderCacheEnabled() || w.blobs == nil || len(key) == 0 || len(blob) == 0 {
		return
	}

	if err := w.blobs.Put(key, blob); err != nil {
		w.log.Debug("shader cache write dropped", "err", err)
		return
	}
	w.metrics.CacheStore(context.Background(), len(blob))
	w.log.Debug("shader cache stored", "bytes", len(blob))
}
