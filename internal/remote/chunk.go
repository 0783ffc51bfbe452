package remote

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/exynostools/xeno/internal/store"
)

const (
	LayerTargetSize = 5 * 1024 * 1024  // 5MB target
	LayerMinSize    = 2 * 1024 * 1024  // 2MB minimum before combining
	LayerSoftMax    = 10 * 1024 * 1024 // 10MB soft maximum
	keyLen          = store.FingerprintLen
	lengthLen       = 8
)

var ErrCorruptLayer = errors.New("remote: corrupt layer")

// PrefixInfo records which layer carries the blobs of one fingerprint prefix.
type PrefixInfo struct {
	Hash  string `json:"hash"`
	Layer string `json:"layer"`
}

// GroupByPrefix buckets blobs by the first two hex characters of their fingerprint.
func GroupByPrefix(blobs map[string][]byte) map[string]map[string][]byte {
	result := make(map[string]map[string][]byte)
	for fp, data := range blobs {
		prefix := extractPrefix(fp)
		if result[prefix] == nil {
			result[prefix] = make(map[string][]byte)
		}
		result[prefix][fp] = data
	}
	return result
}

func extractPrefix(fp string) string {
	if len(fp) >= 2 {
		return fp[:2]
	}
	return "00"
}

// PrefixHash summarizes a bucket. Blobs are overwritten in place, so the content is
// hashed along with the fingerprints.
func PrefixHash(blobs map[string][]byte) string {
	if len(blobs) == 0 {
		return ""
	}

	h := sha256.New()
	var lenBuf [lengthLen]byte
	for _, fp := range slices.Sorted(maps.Keys(blobs)) {
		data := blobs[fp]
		h.Write([]byte(fp))
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		h.Write(lenBuf[:])
		h.Write(data)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func PrefixSize(blobs map[string][]byte) int64 {
	var total int64
	for _, data := range blobs {
		total += int64(len(data))
	}
	return total
}

// PackLayer packs blobs as [fingerprint 40B][length 8B][data]... in fingerprint order.
func PackLayer(blobs map[string][]byte) []byte {
	var buf bytes.Buffer
	keyBuf := make([]byte, keyLen)
	lenBuf := make([]byte, lengthLen)

	for _, fp := range slices.Sorted(maps.Keys(blobs)) {
		data := blobs[fp]

		clear(keyBuf)
		copy(keyBuf, fp)
		buf.Write(keyBuf)

		binary.BigEndian.PutUint64(lenBuf, uint64(len(data)))
		buf.Write(lenBuf)

		buf.Write(data)
	}
	return buf.Bytes()
}

// UnpackLayer reverses PackLayer. Records with an invalid fingerprint or a length
// beyond the store limit make the whole layer corrupt.
func UnpackLayer(data []byte) (map[string][]byte, error) {
	result := make(map[string][]byte)
	r := bytes.NewReader(data)
	keyBuf := make([]byte, keyLen)

	for r.Len() > 0 {
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			return nil, fmt.Errorf("%w: read fingerprint: %v", ErrCorruptLayer, err)
		}
		fp := string(keyBuf)
		if !store.ValidFingerprint(fp) {
			return nil, fmt.Errorf("%w: bad fingerprint %q", ErrCorruptLayer, fp)
		}

		var length uint64
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: read length: %v", ErrCorruptLayer, err)
		}
		if length > store.MaxBlobSize || length > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: %s claims %d bytes", ErrCorruptLayer, fp, length)
		}

		blob := make([]byte, length)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, fmt.Errorf("%w: read data: %v", ErrCorruptLayer, err)
		}
		result[fp] = blob
	}

	return result, nil
}

// BuildLayerPlan groups prefixes into layers of roughly LayerSoftMax bytes.
func BuildLayerPlan(prefixSizes map[string]int64) [][]string {
	var layers [][]string
	var current []string
	var size int64

	for _, prefix := range slices.Sorted(maps.Keys(prefixSizes)) {
		prefixSize := prefixSizes[prefix]

		if len(current) == 0 {
			current = append(current, prefix)
			size = prefixSize
			continue
		}

		newSize := size + prefixSize
		if newSize <= LayerSoftMax {
			current = append(current, prefix)
			size = newSize
		} else if size < LayerMinSize && newSize <= 2*LayerSoftMax {
			current = append(current, prefix)
			size = newSize
		} else {
			layers = append(layers, current)
			current = []string{prefix}
			size = prefixSize
		}
	}

	if len(current) > 0 {
		layers = append(layers, current)
	}

	return layers
}

func CollectPrefixBlobs(prefixes []string, byPrefix map[string]map[string][]byte) map[string][]byte {
	result := make(map[string][]byte)
	for _, prefix := range prefixes {
		maps.Copy(result, byPrefix[prefix])
	}
	return result
}

func CalculatePrefixSizes(byPrefix map[string]map[string][]byte) map[string]int64 {
	result := make(map[string]int64)
	for prefix, blobs := range byPrefix {
		result[prefix] = PrefixSize(blobs)
	}
	return result
}

// RootHash summarizes a prefix map; equal maps give equal hashes.
func RootHash(prefixes map[string]PrefixInfo) string {
	h := sha256.New()
	for _, p := range slices.Sorted(maps.Keys(prefixes)) {
		fmt.Fprintf(h, "%s %s\n", p, prefixes[p].Hash)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
