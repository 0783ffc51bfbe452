package xeno

import (
	"github.com/exynostools/xeno/internal/augment"
	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/host"
)

// Settings and the types below are re-exported from the internal packages so that
// callers can configure a Wrapper.
type (
	Settings        = config.Settings
	PerformanceMode = config.PerformanceMode
	Policy          = augment.Policy
	Loader          = driver.Loader
	Module          = driver.Module
	Prober          = host.Prober
	Tuner           = host.Tuner
)

const (
	PerformanceHigh      = config.PerformanceHigh
	PerformanceBalanced  = config.PerformanceBalanced
	PerformancePowerSave = config.PerformancePowerSave
)

// DefaultSettings returns the settings used when no config source is readable.
func DefaultSettings() Settings { return config.Default() }

// LoadSettings reads the first readable config source in paths. With no paths the
// interposer's search paths are used.
func LoadSettings(paths ...string) (Settings, string, error) {
	if len(paths) == 0 {
		paths = config.DefaultPaths
	}
	return config.Load(paths)
}
