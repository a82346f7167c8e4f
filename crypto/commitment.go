package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SaltSize is the byte length of commitment and keystream salts.
const SaltSize = 32

// NewSalt returns SaltSize cryptographically random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// CommitDigest computes the hex SHA-256 digest of salt || payload. The
// payload must be a canonical serialization: the opener recomputes the
// digest from the revealed salt and payload and compares byte-for-byte.
func CommitDigest(salt, payload []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyDigest recomputes the commitment digest and compares it to the
// claimed one in constant time.
func VerifyDigest(digest string, salt, payload []byte) bool {
	computed := CommitDigest(salt, payload)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
