package store

import (
	"encoding/hex"
	"hash/fnv"
)

// FingerprintLen is the length of a rendered fingerprint.
const FingerprintLen = 40

// Fingerprint maps key to its 40-character identifier.
//
// The 64-bit FNV-1a state is spread over 20 bytes, byte i being the state shifted
// right by 3*i bits. Existing cache directories depend on this exact rendering.
func Fingerprint(key []byte) string {
	h := fnv.New64a()
	h.Write(key)
	sum := h.Sum64()

	var out [FingerprintLen / 2]byte
	for i := range out {
		out[i] = byte(sum >> (3 * i))
	}
	return hex.EncodeToString(out[:])
}

// ValidFingerprint reports whether s looks like a Fingerprint result.
func ValidFingerprint(s string) bool {
	if len(s) != FingerprintLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
