package remote

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/exynostools/xeno/internal/store"
)

func testBlobs() map[string][]byte {
	return map[string][]byte{
		store.Fingerprint([]byte("vertex")):   []byte("compiled vertex shader"),
		store.Fingerprint([]byte("fragment")): []byte("compiled fragment shader"),
		store.Fingerprint([]byte("compute")):  bytes.Repeat([]byte{0xab}, 4096),
	}
}

func TestPackUnpackLayer(t *testing.T) {
	blobs := testBlobs()

	got, err := UnpackLayer(PackLayer(blobs))
	if err != nil {
		t.Fatalf("UnpackLayer() error = %v", err)
	}
	if !maps.EqualFunc(got, blobs, bytes.Equal) {
		t.Errorf("round trip mismatch: got %d blobs, want %d", len(got), len(blobs))
	}
}

func TestPackLayerDeterministic(t *testing.T) {
	if !bytes.Equal(PackLayer(testBlobs()), PackLayer(testBlobs())) {
		t.Error("PackLayer output depends on map order")
	}
}

func TestUnpackLayerCorrupt(t *testing.T) {
	packed := PackLayer(testBlobs())
	fp := store.Fingerprint([]byte("x"))

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated fingerprint", packed[:10]},
		{"truncated length", packed[:keyLen+3]},
		{"truncated data", packed[:len(packed)-1]},
		{"bad fingerprint", append([]byte(strings.Repeat("Z", keyLen)), make([]byte, lengthLen)...)},
		{"length beyond data", append([]byte(fp), 0, 0, 0, 0, 0, 0, 1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnpackLayer(tt.data); !errors.Is(err, ErrCorruptLayer) {
				t.Errorf("UnpackLayer() error = %v, want ErrCorruptLayer", err)
			}
		})
	}
}

func TestGroupByPrefix(t *testing.T) {
	blobs := testBlobs()
	groups := GroupByPrefix(blobs)

	n := 0
	for prefix, bucket := range groups {
		for fp := range bucket {
			if !strings.HasPrefix(fp, prefix) {
				t.Errorf("%s grouped under %s", fp, prefix)
			}
			n++
		}
	}
	if n != len(blobs) {
		t.Errorf("grouped %d blobs, want %d", n, len(blobs))
	}
}

func TestPrefixHashTracksContent(t *testing.T) {
	fp := store.Fingerprint([]byte("k"))
	a := PrefixHash(map[string][]byte{fp: []byte("aaaa")})
	b := PrefixHash(map[string][]byte{fp: []byte("bbbb")})
	if a == b {
		t.Error("same-size rewrite must change the prefix hash")
	}
	if PrefixHash(nil) != "" {
		t.Error("empty bucket should hash to empty string")
	}
}

func TestBuildLayerPlan(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name  string
		sizes map[string]int64
		want  [][]string
	}{
		{
			name:  "small prefixes share a layer",
			sizes: map[string]int64{"00": 1 * mb, "01": 2 * mb, "02": 3 * mb},
			want:  [][]string{{"00", "01", "02"}},
		},
		{
			name:  "split at soft max",
			sizes: map[string]int64{"00": 6 * mb, "01": 6 * mb},
			want:  [][]string{{"00"}, {"01"}},
		},
		{
			name:  "undersized layer absorbs a large prefix",
			sizes: map[string]int64{"00": 1 * mb, "01": 15 * mb},
			want:  [][]string{{"00", "01"}},
		},
		{
			name: "empty",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildLayerPlan(tt.sizes)
			if !slices.EqualFunc(got, tt.want, slices.Equal[[]string]) {
				t.Errorf("BuildLayerPlan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRootHash(t *testing.T) {
	a := map[string]PrefixInfo{"00": {Hash: "h0", Layer: "l0"}, "01": {Hash: "h1", Layer: "l0"}}
	b := map[string]PrefixInfo{"01": {Hash: "h1", Layer: "lX"}, "00": {Hash: "h0", Layer: "lY"}}
	if RootHash(a) != RootHash(b) {
		t.Error("root hash should depend on bucket hashes only")
	}
	b["01"] = PrefixInfo{Hash: "h2"}
	if RootHash(a) == RootHash(b) {
		t.Error("root hash should change with bucket content")
	}
}

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := StatePath(dir, "ghcr.io/org/shaders:main")
	if strings.ContainsAny(strings.TrimPrefix(path, dir), ":@") {
		t.Errorf("state path %q not sanitized", path)
	}

	empty, err := LoadState(path)
	if err != nil || len(empty) != 0 {
		t.Fatalf("LoadState() of missing file = %v, %v", empty, err)
	}

	want := map[string]PrefixInfo{"ab": {Hash: "sha256:1", Layer: "sha256:2"}}
	if err := SaveState(path, want); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !maps.Equal(got, want) {
		t.Errorf("LoadState() = %v, want %v", got, want)
	}
}
