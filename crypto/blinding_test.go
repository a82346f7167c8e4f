package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomBlinderRange(t *testing.T) {
	const modulus = 65537

	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		b, err := RandomBlinder(modulus)
		require.NoError(t, err)
		require.Greater(t, b, uint64(0))
		require.Less(t, b, uint64(modulus))
		seen[b] = true
	}

	// 1000 draws from 65536 values collide sometimes but never collapse.
	require.Greater(t, len(seen), 900)
}

func TestRandomBlinderSmallModulus(t *testing.T) {
	// Modulus 3 leaves {1, 2} as the only legal blinders.
	for i := 0; i < 20; i++ {
		b, err := RandomBlinder(3)
		require.NoError(t, err)
		require.Contains(t, []uint64{1, 2}, b)
	}

	_, err := RandomBlinder(2)
	require.Error(t, err)
	_, err = RandomBlinder(0)
	require.Error(t, err)
}
