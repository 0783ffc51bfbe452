package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/conc/pool"
)

const DefaultConcurrency = 4

// ErrStaleState means the recorded bucket map references layers the registry no
// longer serves. A push without local state recovers.
var ErrStaleState = errors.New("remote: recorded layers not found in registry")

// Image config labels.
const (
	LabelRoot     = "dev.xeno.root"
	LabelPrefixes = "dev.xeno.prefixes"
	LabelEntries  = "dev.xeno.entries"
)

type OCIRemote struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int
	progress    io.Writer
	options     []remote.Option
}

// NewOCIRemote creates a remote from a standard Docker ref (e.g., "ttl.sh/xeno/shaders:main").
func NewOCIRemote(imageRef string, auth Authenticator) (*OCIRemote, error) {
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	return &OCIRemote{ref: ref, auth: auth, concurrency: DefaultConcurrency, progress: io.Discard}, nil
}

// SetConcurrency sets the number of parallel operations for push/pull
func (r *OCIRemote) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

// SetProgress directs the [push]/[pull] progress lines to w.
func (r *OCIRemote) SetProgress(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	r.progress = w
}

// SetOptions appends transport options used for every registry call.
func (r *OCIRemote) SetOptions(opts ...remote.Option) {
	r.options = append(r.options, opts...)
}

func (r *OCIRemote) String() string   { return r.ref.String() }
func (r *OCIRemote) Registry() string { return r.ref.Context().RegistryStr() }
func (r *OCIRemote) Tag() string      { return r.ref.Identifier() }

// WithTag returns a new OCIRemote with a different tag
func (r *OCIRemote) WithTag(tag string) (*OCIRemote, error) {
	newRef, err := name.NewTag(r.ref.Context().String()+":"+tag, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, err
	}
	cp := *r
	cp.ref = newRef
	return &cp, nil
}

func (r *OCIRemote) logf(format string, args ...any) {
	fmt.Fprintf(r.progress, format, args...)
}

// blobLayer implements v1.Layer with zstd compression for remote transfer
type blobLayer struct {
	compressed   []byte
	uncompressed []byte
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

func newBlobLayer(data []byte) *blobLayer {
	return &blobLayer{
		compressed:   zstdEncoder.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *blobLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *blobLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *blobLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *blobLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *blobLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *blobLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// Push uploads the blobs whose prefix bucket changed since local was recorded and
// returns the prefix map describing the pushed image.
func (r *OCIRemote) Push(ctx context.Context, blobs map[string][]byte, local map[string]PrefixInfo) (map[string]PrefixInfo, error) {
	byPrefix := GroupByPrefix(blobs)

	r.logf("[push] %d blobs across %d prefixes\n", len(blobs), len(byPrefix))

	currentHashes := make(map[string]string, len(byPrefix))
	for prefix, bucket := range byPrefix {
		currentHashes[prefix] = PrefixHash(bucket)
	}

	var changed []string
	for prefix, hash := range currentHashes {
		if prev, ok := local[prefix]; !ok || prev.Hash != hash {
			changed = append(changed, prefix)
		}
	}

	r.logf("[push] %d prefixes changed (of %d local)\n", len(changed), len(local))

	prefixes := make(map[string]PrefixInfo)
	for prefix, info := range local {
		if _, exists := currentHashes[prefix]; exists {
			prefixes[prefix] = info
		}
	}

	if len(changed) == 0 {
		r.logf("[push] no changes, updating manifest only\n")
		return prefixes, r.pushManifest(ctx, prefixes, len(blobs))
	}

	changedByPrefix := make(map[string]map[string][]byte, len(changed))
	for _, prefix := range changed {
		changedByPrefix[prefix] = byPrefix[prefix]
	}

	plan := BuildLayerPlan(CalculatePrefixSizes(changedByPrefix))
	r.logf("[push] packing into %d layers\n", len(plan))

	layers := make([]v1.Layer, 0, len(plan))
	var totalRaw, totalCompressed int64
	for _, group := range plan {
		data := PackLayer(CollectPrefixBlobs(group, changedByPrefix))
		layer := newBlobLayer(data)
		digest, err := layer.Digest()
		if err != nil {
			return nil, fmt.Errorf("digest layer: %w", err)
		}
		totalRaw += int64(len(data))
		totalCompressed += int64(len(layer.compressed))

		layers = append(layers, layer)
		for _, prefix := range group {
			prefixes[prefix] = PrefixInfo{Hash: currentHashes[prefix], Layer: digest.String()}
		}
	}

	ratio := 0.0
	if totalRaw > 0 {
		ratio = float64(totalCompressed) / float64(totalRaw) * 100
	}
	r.logf("[push] uploading %d layers (%.1fMB -> %.1fMB, %.0f%%)\n",
		len(layers), float64(totalRaw)/(1024*1024), float64(totalCompressed)/(1024*1024), ratio)

	// Unchanged prefixes live in layers already in the registry; carry them over
	// from the previous image so the new manifest still references them.
	carried, err := r.carryLayers(ctx, prefixes, changed)
	if err != nil {
		return nil, err
	}

	img, err := r.buildImage(append(carried, layers...), prefixes, len(blobs))
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}
	if err := r.pushImage(ctx, img); err != nil {
		return nil, fmt.Errorf("push image: %w", err)
	}

	r.logf("[push] done\n")
	return prefixes, nil
}

// carryLayers returns the layers of the currently pushed image that still carry
// prefixes outside changed.
func (r *OCIRemote) carryLayers(ctx context.Context, prefixes map[string]PrefixInfo, changed []string) ([]v1.Layer, error) {
	skip := make(map[string]bool, len(changed))
	for _, p := range changed {
		skip[p] = true
	}
	want := make(map[string]bool)
	for prefix, info := range prefixes {
		if !skip[prefix] && info.Layer != "" {
			want[info.Layer] = true
		}
	}
	if len(want) == 0 {
		return nil, nil
	}

	prev, _, err := r.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch previous image: %v", ErrStaleState, err)
	}
	all, err := prev.Layers()
	if err != nil {
		return nil, fmt.Errorf("get layers: %w", err)
	}

	var layers []v1.Layer
	for _, layer := range all {
		digest, err := layer.Digest()
		if err != nil {
			return nil, err
		}
		if want[digest.String()] {
			layers = append(layers, layer)
			delete(want, digest.String())
		}
	}
	if len(want) > 0 {
		return nil, fmt.Errorf("%w: %d layers missing from %s", ErrStaleState, len(want), r.ref)
	}
	return layers, nil
}

func (r *OCIRemote) pushManifest(ctx context.Context, prefixes map[string]PrefixInfo, entries int) error {
	layers, err := r.carryLayers(ctx, prefixes, nil)
	if err != nil {
		return err
	}
	img, err := r.buildImage(layers, prefixes, entries)
	if err != nil {
		return err
	}
	return r.pushImage(ctx, img)
}

func (r *OCIRemote) buildImage(layers []v1.Layer, prefixes map[string]PrefixInfo, entries int) (v1.Image, error) {
	img := empty.Image

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	prefixJSON, err := json.Marshal(prefixes)
	if err != nil {
		return nil, err
	}

	cfg.Config.Labels = map[string]string{
		LabelRoot:     RootHash(prefixes),
		LabelPrefixes: string(prefixJSON),
		LabelEntries:  strconv.Itoa(entries),
	}

	return mutate.ConfigFile(img, cfg)
}

func (r *OCIRemote) pushImage(ctx context.Context, img v1.Image) error {
	options := append(r.remoteOptions(ctx), remote.WithJobs(r.concurrency))
	_, err := retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, remote.Write(r.ref, img, options...)
	})
	return err
}

// Manifest describes a pushed cache image.
type Manifest struct {
	Root     string
	Entries  int
	Prefixes map[string]PrefixInfo
}

// Fetch reads the cache image labels without downloading layers.
func (r *OCIRemote) Fetch(ctx context.Context) (v1.Image, Manifest, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return remote.Image(r.ref, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("fetch image: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("get config: %w", err)
	}

	m := Manifest{Root: cfg.Config.Labels[LabelRoot]}
	if m.Root == "" {
		return nil, Manifest{}, fmt.Errorf("missing %s label", LabelRoot)
	}
	if n := cfg.Config.Labels[LabelEntries]; n != "" {
		m.Entries, _ = strconv.Atoi(n)
	}
	if prefixJSON := cfg.Config.Labels[LabelPrefixes]; prefixJSON != "" {
		if err := json.Unmarshal([]byte(prefixJSON), &m.Prefixes); err != nil {
			return nil, Manifest{}, fmt.Errorf("parse prefixes: %w", err)
		}
	}
	return img, m, nil
}

// Pull downloads the layers carrying prefixes that differ from local.
func (r *OCIRemote) Pull(ctx context.Context, local map[string]PrefixInfo) (map[string][]byte, map[string]PrefixInfo, error) {
	img, m, err := r.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	needed := make(map[string]bool)
	for prefix, info := range m.Prefixes {
		if prev, ok := local[prefix]; !ok || prev.Hash != info.Hash {
			needed[info.Layer] = true
		}
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, nil, fmt.Errorf("get layers: %w", err)
	}

	var fetch []v1.Layer
	for _, layer := range layers {
		digest, err := layer.Digest()
		if err != nil {
			continue
		}
		if needed[digest.String()] {
			fetch = append(fetch, layer)
		}
	}

	r.logf("[pull] downloading %d layers in parallel\n", len(fetch))

	var mu sync.Mutex
	blobs := make(map[string][]byte)

	p := pool.New().WithMaxGoroutines(r.concurrency).WithContext(ctx).WithCancelOnError()
	for _, layer := range fetch {
		p.Go(func(ctx context.Context) error {
			digest, err := layer.Digest()
			if err != nil {
				return err
			}
			rc, err := layer.Uncompressed()
			if err != nil {
				return fmt.Errorf("read layer: %w", err)
			}
			data, err := io.ReadAll(rc)
			if cerr := rc.Close(); cerr != nil {
				return fmt.Errorf("close layer: %w", cerr)
			}
			if err != nil {
				return fmt.Errorf("read layer: %w", err)
			}

			unpacked, err := UnpackLayer(data)
			if err != nil {
				return fmt.Errorf("unpack layer: %w", err)
			}

			// A carried layer may still hold stale copies of prefixes that were
			// repacked into a newer layer; only the recorded owner counts.
			mu.Lock()
			for fp, blob := range unpacked {
				if m.Prefixes[extractPrefix(fp)].Layer == digest.String() {
					blobs[fp] = blob
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	r.logf("[pull] done, %d blobs received\n", len(blobs))
	return blobs, m.Prefixes, nil
}

func (r *OCIRemote) remoteOptions(ctx context.Context) []remote.Option {
	opts := []remote.Option{remote.WithContext(ctx)}
	opts = append(opts, r.options...)
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(opts, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s, 4s...
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
