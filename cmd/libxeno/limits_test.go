//go:build cgo

package main

import (
	"math"
	"testing"

	"github.com/exynostools/xeno/internal/store"
)

func TestValidLen(t *testing.T) {
	tests := []struct {
		n    uint64
		want bool
	}{
		{0, false},
		{1, true},
		{store.MaxBlobSize, true},
		{store.MaxBlobSize + 1, false},
		{1 << 31, false},
		{math.MaxUint64, false},
	}
	for _, tt := range tests {
		if got := validLen(tt.n); got != tt.want {
			t.Errorf("validLen(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}
