//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package host

import "errors"

// Tune is unsupported on this platform.
func (t *PriorityTuner) Tune() error {
	return errors.New("host: process priority tuning unsupported")
}
