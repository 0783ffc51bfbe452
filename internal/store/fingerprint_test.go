package store

import "testing"

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, "83700e81d03ae79c730ec1d8fb1f4328658c510a"},
		{"hello", []byte("hello"), "a1f41e63ec3dc79813a2548ad11a83d05a0b0100"},
		{"spirv magic", []byte{0x03, 0x02, 0x23, 0x07}, "a89592d21ae35c6b8df11ec3b817c23847488931"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.in)
			if got != tt.want {
				t.Errorf("Fingerprint(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if !ValidFingerprint(got) {
				t.Errorf("ValidFingerprint(%s) = false", got)
			}
		})
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	key := []byte("#version 450\nvoid main() {}")
	if Fingerprint(key) != Fingerprint(append([]byte(nil), key...)) {
		t.Error("same bytes produced different fingerprints")
	}
	if Fingerprint([]byte("ab")) == Fingerprint([]byte("ba")) {
		t.Error("fingerprint should be order sensitive")
	}
}

func TestValidFingerprint(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a1f41e63ec3dc79813a2548ad11a83d05a0b0100", true},
		{"A1F41E63EC3DC79813A2548AD11A83D05A0B0100", false},
		{"a1f41e63", false},
		{"g1f41e63ec3dc79813a2548ad11a83d05a0b0100", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidFingerprint(tt.in); got != tt.want {
			t.Errorf("ValidFingerprint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
