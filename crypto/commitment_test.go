package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitDigestDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	payload := []byte(`[{"a":1,"b":2}]`)

	d1 := CommitDigest(salt, payload)
	d2 := CommitDigest(salt, payload)
	require.Equal(t, d1, d2)
	require.Len(t, d1, 64, "hex SHA-256 digest")
}

func TestVerifyDigest(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	payload := []byte(`[{"x":3}]`)

	digest := CommitDigest(salt, payload)
	require.True(t, VerifyDigest(digest, salt, payload))

	// Any change to salt or payload must break the commitment.
	otherSalt, err := NewSalt()
	require.NoError(t, err)
	require.False(t, VerifyDigest(digest, otherSalt, payload))
	require.False(t, VerifyDigest(digest, salt, []byte(`[{"x":4}]`)))
	require.False(t, VerifyDigest("not-a-digest", salt, payload))
}

func TestNewSaltUnique(t *testing.T) {
	s1, err := NewSalt()
	require.NoError(t, err)
	s2, err := NewSalt()
	require.NoError(t, err)

	require.Len(t, s1, SaltSize)
	require.NotEqual(t, s1, s2)
}
