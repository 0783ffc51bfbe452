package driver_test

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/driver/drivertest"
	"github.com/exynostools/xeno/internal/vk"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBindCandidateOrder(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		loadable   []string
		wantPath   string
		wantTried  []string
		wantErr    error
	}{
		{
			name:       "first candidate wins",
			candidates: []string{"/a.so", "/b.so", ""},
			loadable:   []string{"/a.so", "/b.so"},
			wantPath:   "/a.so",
			wantTried:  []string{"/a.so"},
		},
		{
			name:       "falls through to later candidate",
			candidates: []string{"/a.so", "/b.so", "/c.so", ""},
			loadable:   []string{"/c.so"},
			wantPath:   "/c.so",
			wantTried:  []string{"/a.so", "/b.so", "/c.so"},
		},
		{
			name:       "empty entry ends the scan",
			candidates: []string{"/a.so", "", "/b.so"},
			loadable:   []string{"/b.so"},
			wantTried:  []string{"/a.so"},
			wantErr:    driver.ErrNoDriver,
		},
		{
			name:       "nothing loadable",
			candidates: []string{"/a.so", "/b.so"},
			wantTried:  []string{"/a.so", "/b.so"},
			wantErr:    driver.ErrNoDriver,
		},
		{
			name:    "empty list",
			wantErr: driver.ErrNoDriver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := drivertest.NewLoader()
			fake := &drivertest.Driver{}
			for _, p := range tt.loadable {
				loader.Register(fake.Module(p))
			}

			d, err := driver.Bind(loader, tt.candidates, discard)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Bind() error = %v, want %v", err, tt.wantErr)
			}
			if got := loader.Tried(); !slices.Equal(got, tt.wantTried) {
				t.Errorf("tried %v, want %v", got, tt.wantTried)
			}
			if tt.wantErr != nil {
				if d != nil {
					t.Errorf("Bind() returned a driver on error")
				}
				return
			}
			if d.Module.Path() != tt.wantPath {
				t.Errorf("bound %q, want %q", d.Module.Path(), tt.wantPath)
			}
		})
	}
}

func TestBindResolvesEveryEntryPoint(t *testing.T) {
	loader := drivertest.NewLoader().Register((&drivertest.Driver{}).Module("/full.so"))

	d, err := driver.Bind(loader, []string{"/full.so"}, discard)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	for _, ep := range driver.EntryPoints() {
		if !d.Table.Has(ep) {
			t.Errorf("%s not resolved", ep)
		}
	}
}

func TestBindMissingEntryPointsStayAbsent(t *testing.T) {
	fake := &drivertest.Driver{}
	mod := fake.Module("/partial.so", driver.CreateSwapchain, driver.QueuePresent)
	loader := drivertest.NewLoader().Register(mod)

	d, err := driver.Bind(loader, []string{"/partial.so"}, discard)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	for _, ep := range driver.EntryPoints() {
		want := ep != driver.CreateSwapchain && ep != driver.QueuePresent
		if got := d.Table.Has(ep); got != want {
			t.Errorf("Has(%s) = %v, want %v", ep, got, want)
		}
	}
	if d.Table.CreateSwapchain != nil || d.Table.QueuePresent != nil {
		t.Error("missing entry points must be nil")
	}
}

func TestResolveRejectsMistypedSymbols(t *testing.T) {
	mod := drivertest.NewModule("/odd.so", map[string]any{
		"vkCreateInstance": func() {},
		"vkCreateDevice":   42,
		"vkQueuePresentKHR": func(vk.Queue, *vk.PresentInfo) vk.Result {
			return vk.Success
		},
		"vkAllocateMemory": driver.AllocateMemoryFunc(nil),
	})

	var table driver.Table
	missing := table.Resolve(mod)

	if !table.Has(driver.QueuePresent) {
		t.Error("plain func literal with matching signature should resolve")
	}
	for _, ep := range []driver.EntryPoint{driver.CreateInstance, driver.CreateDevice, driver.AllocateMemory} {
		if table.Has(ep) {
			t.Errorf("%s resolved from a mistyped symbol", ep)
		}
		if !slices.Contains(missing, ep) {
			t.Errorf("%s not reported missing", ep)
		}
	}
	if len(missing) != len(driver.EntryPoints())-1 {
		t.Errorf("missing = %d entries, want %d", len(missing), len(driver.EntryPoints())-1)
	}
}

func TestEntryPointSymbols(t *testing.T) {
	for _, ep := range driver.EntryPoints() {
		back, ok := driver.Lookup(ep.String())
		if !ok || back != ep {
			t.Errorf("Lookup(%q) = %v, %v", ep.String(), back, ok)
		}
	}
	if _, ok := driver.Lookup("vkDestroyInstance"); ok {
		t.Error("Lookup of an unbound symbol should fail")
	}
	if got := driver.EntryPoint(99).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}

func TestDefaultCandidatesTerminated(t *testing.T) {
	if n := len(driver.DefaultCandidates); n == 0 || driver.DefaultCandidates[n-1] != "" {
		t.Fatal("default candidate list must end with an empty entry")
	}
}
