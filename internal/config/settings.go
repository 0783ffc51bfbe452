// Package config holds the interposer settings and loads them from key=value files.
package config

import (
	"fmt"
	"sync/atomic"
)

// PerformanceMode selects how aggressively presentation is tuned.
type PerformanceMode int32

const (
	PerformanceHigh      PerformanceMode = 1
	PerformanceBalanced  PerformanceMode = 2
	PerformancePowerSave PerformanceMode = 3
)

func (m PerformanceMode) String() string {
	switch m {
	case PerformanceHigh:
		return "HIGH"
	case PerformanceBalanced:
		return "BALANCED"
	case PerformancePowerSave:
		return "POWER_SAVE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m PerformanceMode) Valid() bool {
	return m >= PerformanceHigh && m <= PerformancePowerSave
}

// DefaultCacheDir is where shader blobs live unless configured otherwise.
const DefaultCacheDir = "/data/data/com.winlator/files/xclipse_cache"

// Settings is the configuration the interposer core consumes.
type Settings struct {
	PerformanceMode     PerformanceMode `json:"performance_mode"`
	ShaderCacheEnabled  bool            `json:"shader_cache_enabled"`
	EmulationEnabled    bool            `json:"bc4_emulation_enabled"`
	CacheDir            string          `json:"shader_cache_dir"`
	CacheCompression    bool            `json:"shader_cache_compression"`
	SyntheticExtensions bool            `json:"synthetic_extensions_enabled"`
	FeatureOverrides    bool            `json:"feature_overrides_enabled"`
}

// Default returns the settings used when no config source is readable.
func Default() Settings {
	return Settings{
		PerformanceMode:     PerformanceBalanced,
		ShaderCacheEnabled:  true,
		EmulationEnabled:    true,
		CacheDir:            DefaultCacheDir,
		SyntheticExtensions: true,
		FeatureOverrides:    true,
	}
}

// Live is a Settings value whose performance mode and emulation flag can be swapped
// while other goroutines read them. Readers may observe a stale value for one call.
type Live struct {
	base      atomic.Pointer[Settings]
	mode      atomic.Int32
	emulation atomic.Bool
}

// NewLive wraps s.
func NewLive(s Settings) *Live {
	l := &Live{}
	l.Replace(s)
	return l
}

// Replace installs a complete settings value.
func (l *Live) Replace(s Settings) {
	cp := s
	l.base.Store(&cp)
	l.mode.Store(int32(s.PerformanceMode))
	l.emulation.Store(s.EmulationEnabled)
}

// Snapshot returns the current settings.
func (l *Live) Snapshot() Settings {
	s := *l.base.Load()
	s.PerformanceMode = PerformanceMode(l.mode.Load())
	s.EmulationEnabled = l.emulation.Load()
	return s
}

func (l *Live) PerformanceMode() PerformanceMode { return PerformanceMode(l.mode.Load()) }
func (l *Live) EmulationEnabled() bool           { return l.emulation.Load() }
func (l *Live) ShaderCacheEnabled() bool         { return l.base.Load().ShaderCacheEnabled }

func (l *Live) SetPerformanceMode(m PerformanceMode) { l.mode.Store(int32(m)) }
func (l *Live) SetEmulationEnabled(on bool)          { l.emulation.Store(on) }
