//go:build linux || darwin || freebsd || netbsd || openbsd

package host

import "golang.org/x/sys/unix"

// Tune sets the nice value of the calling process. Unprivileged processes usually
// get EACCES.
func (t *PriorityTuner) Tune() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, t.Nice)
}
