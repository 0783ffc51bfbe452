package xeno

import (
	"errors"

	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/store"
)

var (
	ErrNoDriver = driver.ErrNoDriver
	ErrNotFound = store.ErrNotFound
	ErrNoRemote = errors.New("xeno: no remote configured")
)
