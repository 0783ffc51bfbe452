// Package remote syncs the shader cache with an OCI registry.
//
// Blobs are bucketed by the first two characters of their fingerprint. Each push
// repacks only the buckets whose content changed, carries the other layers over
// from the previous image, and records the bucket to layer mapping in the image
// config labels:
//
//	dev.xeno.root      summary hash of the bucket map
//	dev.xeno.prefixes  JSON bucket -> {hash, layer}
//	dev.xeno.entries   blob count
//
// Upload ordering follows go-containerregistry: layers, config, manifest.
package remote

import "context"

// Remote handles OCI registry operations.
type Remote interface {
	// Push uploads blobs, skipping buckets unchanged since local was recorded.
	Push(ctx context.Context, blobs map[string][]byte, local map[string]PrefixInfo) (map[string]PrefixInfo, error)

	// Pull downloads the buckets that differ from local.
	Pull(ctx context.Context, local map[string]PrefixInfo) (blobs map[string][]byte, prefixes map[string]PrefixInfo, err error)
}

var _ Remote = (*OCIRemote)(nil)
