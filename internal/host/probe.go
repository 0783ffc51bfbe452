// Package host identifies the device the interposer runs on and applies process tuning.
package host

import (
	"bufio"
	"os"
	"strings"
)

// DefaultDescriptor is the host descriptor file that is probed.
const DefaultDescriptor = "/proc/cpuinfo"

// Markers are the substrings that identify the specialized hardware.
//
// A host matches when some line contains every HardwareLine substring and some line
// contains any of the Model substrings.
type Markers struct {
	HardwareLine []string
	Model        []string
}

// DefaultMarkers match an Exynos 2400 with its Xclipse 940 GPU.
var DefaultMarkers = Markers{
	HardwareLine: []string{"Hardware", "Exynos"},
	Model:        []string{"Xclipse", "2400"},
}

// Prober decides whether the host is the specialized hardware.
type Prober interface {
	Probe() bool
}

// FileProber scans a descriptor file for Markers.
type FileProber struct {
	Path    string
	Markers Markers
}

// NewFileProber probes path with the default markers.
func NewFileProber(path string) *FileProber {
	return &FileProber{Path: path, Markers: DefaultMarkers}
}

// Probe reports false when the descriptor cannot be read.
func (p *FileProber) Probe() bool {
	f, err := os.Open(p.Path)
	if err != nil {
		return false
	}
	defer f.Close()

	var hardware, model bool
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !hardware && containsAll(line, p.Markers.HardwareLine) {
			hardware = true
		}
		if !model && containsAny(line, p.Markers.Model) {
			model = true
		}
		if hardware && model {
			return true
		}
	}
	return false
}

// ProberFunc adapts a function to Prober.
type ProberFunc func() bool

func (f ProberFunc) Probe() bool { return f() }

func containsAll(line string, subs []string) bool {
	if len(subs) == 0 {
		return false
	}
	for _, s := range subs {
		if !strings.Contains(line, s) {
			return false
		}
	}
	return true
}

func containsAny(line string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}
