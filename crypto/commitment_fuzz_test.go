package crypto

import (
	"testing"
)

func FuzzVerifyDigest(f *testing.F) {
	f.Add([]byte("salt-material-0123456789abcdef!!"), []byte(`[{"a":1}]`))
	f.Add([]byte{}, []byte{})
	f.Add([]byte{0x00, 0xff}, []byte("payload"))

	f.Fuzz(func(t *testing.T, salt, payload []byte) {
		digest := CommitDigest(salt, payload)

		// Invariant 1: digest is hex SHA-256
		if len(digest) != 64 {
			t.Fatalf("digest length %d, want 64", len(digest))
		}

		// Invariant 2: a digest verifies against its own inputs
		if !VerifyDigest(digest, salt, payload) {
			t.Errorf("digest did not verify against its own inputs")
		}

		// Invariant 3: a mutated payload fails verification
		mutated := append(append([]byte(nil), payload...), 0x01)
		if VerifyDigest(digest, salt, mutated) {
			t.Errorf("digest verified against a mutated payload")
		}

		// Invariant 4: determinism
		if digest != CommitDigest(salt, payload) {
			t.Errorf("non-deterministic digest")
		}
	})
}
