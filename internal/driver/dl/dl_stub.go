//go:build !cgo || !(linux || android || freebsd)

package dl

import (
	"errors"
	"runtime"

	"github.com/exynostools/xeno/internal/driver"
)

var errUnsupported = errors.New("dl: dynamic loading requires cgo on " + runtime.GOOS)

// Loader fails every Open on builds without a dynamic loader.
type Loader struct {
	Flags int
}

func NewLoader() *Loader { return &Loader{} }

func (l *Loader) Open(path string) (driver.Module, error) {
	return nil, errUnsupported
}

func Addr(mod driver.Module, symbol string) (uintptr, error) {
	return 0, errUnsupported
}
