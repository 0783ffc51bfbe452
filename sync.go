package xeno

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/remote"
	"github.com/exynostools/xeno/internal/store"
)

// Sync pushes and pulls the shader cache directory to an OCI image.
type Sync struct {
	blobs    *store.LocalStore
	remote   *remote.OCIRemote
	cacheDir string
	log      func(format string, args ...any)
}

// OpenSync binds the cache directory to an image ref (e.g., "ghcr.io/org/shaders:main").
// The directory comes from WithCacheDir or, failing that, the config sources.
func OpenSync(imageRef string, opts ...Option) (*Sync, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	settings := config.Default()
	if o.settings != nil {
		settings = *o.settings
	} else {
		// A partially parsed config still names a usable directory.
		settings, _, _ = config.Load(o.configPaths)
	}
	cacheDir := settings.CacheDir
	if o.cacheDir != "" {
		cacheDir = o.cacheDir
	}

	blobs, err := store.NewLocalStore(cacheDir, o.memoSize, 0, settings.CacheCompression)
	if err != nil {
		return nil, err
	}
	blobs.SetConcurrency(o.concurrency)

	auth := o.auth
	if auth == nil {
		auth = remote.EnvAuthenticator{Fallback: remote.NewDefaultAuthenticator()}
	}
	r, err := remote.NewOCIRemote(imageRef, auth)
	if err != nil {
		return nil, err
	}
	r.SetConcurrency(o.concurrency)
	r.SetProgress(o.progress)

	return &Sync{
		blobs:    blobs,
		remote:   r,
		cacheDir: cacheDir,
		log:      func(format string, args ...any) { fmt.Fprintf(o.progress, format, args...) },
	}, nil
}

// Ref returns the image reference.
func (s *Sync) Ref() string { return s.remote.String() }

// Store returns the local blob store.
func (s *Sync) Store() *store.LocalStore { return s.blobs }

// Push uploads to the specified tags. If no tags provided, uses the current ref's tag.
func (s *Sync) Push(ctx context.Context, tags ...string) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	if len(tags) == 0 {
		tags = []string{s.remote.Tag()}
	}

	blobs, err := s.readAll(ctx)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if err := s.pushToTag(ctx, tag, blobs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sync) pushToTag(ctx context.Context, tag string, blobs map[string][]byte) error {
	r, err := s.remote.WithTag(tag)
	if err != nil {
		return fmt.Errorf("invalid tag %q: %w", tag, err)
	}

	statePath := remote.StatePath(s.cacheDir, r.String())
	local, err := remote.LoadState(statePath)
	if err != nil {
		s.log("[push] ignoring unreadable sync state: %v\n", err)
		local = nil
	}

	prefixes, err := r.Push(ctx, blobs, local)
	if errors.Is(err, remote.ErrStaleState) {
		s.log("[push] sync state is stale, pushing everything\n")
		prefixes, err = r.Push(ctx, blobs, nil)
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", tag, err)
	}

	return remote.SaveState(statePath, prefixes)
}

// Pull downloads the buckets that differ from the local directory and stores their
// blobs. It returns the number of blobs written.
func (s *Sync) Pull(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, ErrNoRemote
	}

	// Compare against what is on disk rather than the last recorded state, so a
	// cleared cache is refilled.
	blobs, err := s.readAll(ctx)
	if err != nil {
		return 0, err
	}
	local := make(map[string]remote.PrefixInfo)
	for prefix, bucket := range remote.GroupByPrefix(blobs) {
		local[prefix] = remote.PrefixInfo{Hash: remote.PrefixHash(bucket)}
	}

	received, prefixes, err := s.remote.Pull(ctx, local)
	if err != nil {
		return 0, fmt.Errorf("pull: %w", err)
	}

	for _, fp := range slices.Sorted(maps.Keys(received)) {
		if err := s.blobs.Store(fp, received[fp]); err != nil {
			return 0, fmt.Errorf("store blob %s: %w", fp, err)
		}
	}

	if err := remote.SaveState(remote.StatePath(s.cacheDir, s.remote.String()), prefixes); err != nil {
		return len(received), fmt.Errorf("save sync state: %w", err)
	}
	return len(received), nil
}

// Close releases the local store.
func (s *Sync) Close() error {
	return s.blobs.Close()
}

func (s *Sync) readAll(ctx context.Context) (map[string][]byte, error) {
	var fps []string
	for e, err := range s.blobs.Entries() {
		if err != nil {
			return nil, err
		}
		fps = append(fps, e.Fingerprint)
	}
	return s.blobs.GetMulti(ctx, fps)
}
