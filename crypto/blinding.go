package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomBlinder samples a uniform random scalar in [1, modulus-1]. With a
// prime modulus, multiplying a match score by the blinder maps zero to zero
// and every nonzero score to a uniformly distributed nonzero value, hiding
// the score while preserving the match test.
func RandomBlinder(modulus uint64) (uint64, error) {
	if modulus < 3 {
		return 0, fmt.Errorf("modulus %d too small for blinding", modulus)
	}

	// Uniform over [0, modulus-2], shifted to [1, modulus-1].
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(modulus-1))
	if err != nil {
		return 0, fmt.Errorf("sample blinder: %w", err)
	}
	return n.Uint64() + 1, nil
}
