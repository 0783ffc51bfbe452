// Package driver loads a vendor Vulkan driver and resolves its entry points.
//
// Loading and symbol lookup sit behind Loader and Module so the platform dynamic
// loader can be replaced by an in-process fake.
package driver

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrNoDriver = errors.New("driver: no candidate could be loaded")

// DefaultCandidates are the driver libraries tried in order. An empty entry ends the
// list.
var DefaultCandidates = []string{
	"/vendor/lib64/libvkdriver.so",
	"/system/vendor/lib64/libvkdriver.so",
	"/vendor/lib64/libvulkan_mali.so",
	"/system/vendor/lib64/libvulkan_mali.so",
	"/system/lib64/libvulkan.so",
	"/usr/lib/libvulkan.so",
	"/data/data/com.winlator/files/libs/arm64-v8a/libvulkan_radv.so",
	"",
}

// Loader opens driver libraries.
type Loader interface {
	Open(path string) (Module, error)
}

// Module is a loaded driver library. Modules are never closed.
type Module interface {
	Path() string

	// Lookup resolves a symbol. The returned value is the typed function for that
	// entry point (see Table), or false when the library does not export it.
	Lookup(symbol string) (any, bool)
}

// Driver is the bound vendor driver.
type Driver struct {
	Module Module
	Table  Table
}

// Bind opens the first loadable candidate and resolves every entry point on it.
// Resolution gaps are logged and left absent. ErrNoDriver means nothing loaded.
func Bind(loader Loader, candidates []string, log *slog.Logger) (*Driver, error) {
	mod, err := open(loader, candidates, log)
	if err != nil {
		return nil, err
	}

	d := &Driver{Module: mod}
	for _, missing := range d.Table.Resolve(mod) {
		log.Warn("failed to resolve entry point", "symbol", missing.String(), "driver", mod.Path())
	}
	return d, nil
}

func open(loader Loader, candidates []string, log *slog.Logger) (Module, error) {
	var errs []error
	for _, path := range candidates {
		if path == "" {
			break
		}
		mod, err := loader.Open(path)
		if err != nil {
			log.Debug("driver candidate unavailable", "path", path, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		log.Info("loaded vendor driver", "path", path)
		return mod, nil
	}
	return nil, errors.Join(append([]error{ErrNoDriver}, errs...)...)
}
