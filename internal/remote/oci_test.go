package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"maps"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"

	"github.com/exynostools/xeno/internal/store"
)

func newTestRemote(t *testing.T) *OCIRemote {
	t.Helper()
	srv := httptest.NewServer(registry.New(registry.Logger(log.New(io.Discard, "", 0))))
	t.Cleanup(srv.Close)

	ref := strings.TrimPrefix(srv.URL, "http://") + "/xeno/shaders:test"
	r, err := NewOCIRemote(ref, StaticAuthenticator{})
	if err != nil {
		t.Fatalf("NewOCIRemote() error = %v", err)
	}
	return r
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote(t)
	blobs := testBlobs()

	prefixes, err := r.Push(ctx, blobs, nil)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(prefixes) != len(GroupByPrefix(blobs)) {
		t.Errorf("prefixes = %d, want %d", len(prefixes), len(GroupByPrefix(blobs)))
	}

	got, remotePrefixes, err := r.Pull(ctx, nil)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !maps.EqualFunc(got, blobs, bytes.Equal) {
		t.Errorf("pulled %d blobs, want %d", len(got), len(blobs))
	}
	if !maps.Equal(remotePrefixes, prefixes) {
		t.Errorf("remote prefixes = %v, want %v", remotePrefixes, prefixes)
	}

	// Pulling with the returned state downloads nothing.
	again, _, err := r.Pull(ctx, remotePrefixes)
	if err != nil {
		t.Fatalf("second Pull() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("up-to-date pull returned %d blobs", len(again))
	}
}

func TestIncrementalPush(t *testing.T) {
	ctx := context.Background()
	r := newTestRemote(t)
	blobs := testBlobs()

	first, err := r.Push(ctx, blobs, nil)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	added := store.Fingerprint([]byte("geometry"))
	blobs[added] = []byte("compiled geometry shader")
	second, err := r.Push(ctx, blobs, first)
	if err != nil {
		t.Fatalf("incremental Push() error = %v", err)
	}
	if second[added[:2]].Layer == "" {
		t.Fatal("new prefix has no layer")
	}

	got, _, err := r.Pull(ctx, nil)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !maps.EqualFunc(got, blobs, bytes.Equal) {
		t.Errorf("pulled %d blobs after incremental push, want %d", len(got), len(blobs))
	}

	_, m, err := r.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if m.Entries != len(blobs) || m.Root != RootHash(second) {
		t.Errorf("manifest = %+v", m)
	}
}

func TestPullMissingImage(t *testing.T) {
	r := newTestRemote(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Pull(ctx, nil); err == nil {
		t.Error("Pull() of a missing image should fail")
	}
}

func TestPushStaleState(t *testing.T) {
	r := newTestRemote(t)
	stale := map[string]PrefixInfo{
		"zz": {Hash: "sha256:old", Layer: "sha256:" + strings.Repeat("0", 64)},
	}
	blobs := map[string][]byte{strings.Repeat("a", 40): []byte("blob")}

	// Carry a bucket the current blobs still have so the stale layer is referenced.
	stale["aa"] = PrefixInfo{Hash: PrefixHash(blobs), Layer: stale["zz"].Layer}

	if _, err := r.Push(context.Background(), blobs, stale); !errors.Is(err, ErrStaleState) {
		t.Fatalf("Push() error = %v, want ErrStaleState", err)
	}
}
