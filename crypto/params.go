package crypto

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/lattigo/v4/bfv"
)

// Params describe the BFV lattice configuration shared by both key domains.
// Both parties must agree on these before provisioning keys; ciphertexts
// from domains with different parameters are mutually unintelligible.
type Params struct {
	// PolyDegree is the ring dimension N. Supported values: 4096, 8192, 16384.
	PolyDegree int `json:"poly_degree" yaml:"poly_degree"`

	// PlainModulus is the plaintext modulus t. Must be prime and congruent
	// to 1 mod 2N so that slot batching is available and the match test
	// operates over a field.
	PlainModulus uint64 `json:"plain_modulus" yaml:"plain_modulus"`
}

// DefaultParams returns the production parameter set: degree 8192 with the
// Fermat prime 65537 as plaintext modulus (~218-bit ciphertext modulus).
func DefaultParams() Params {
	return Params{PolyDegree: 8192, PlainModulus: 65537}
}

// Validate checks that the parameter set is supported and sound.
func (p Params) Validate() error {
	switch p.PolyDegree {
	case 4096, 8192, 16384:
	default:
		return fmt.Errorf("unsupported poly degree %d (want 4096, 8192 or 16384)", p.PolyDegree)
	}
	if p.PlainModulus < 2 {
		return fmt.Errorf("plain modulus %d too small", p.PlainModulus)
	}
	if p.PlainModulus%(2*uint64(p.PolyDegree)) != 1 {
		return fmt.Errorf("plain modulus %d is not congruent to 1 mod %d", p.PlainModulus, 2*p.PolyDegree)
	}
	if !new(big.Int).SetUint64(p.PlainModulus).ProbablyPrime(20) {
		return fmt.Errorf("plain modulus %d is not prime", p.PlainModulus)
	}
	return nil
}

// bfvParameters maps Params onto a lattigo parameter set. The ciphertext
// modulus chain comes from the lattigo default literal for the degree; only
// the plaintext modulus is overridden.
func (p Params) bfvParameters() (bfv.Parameters, error) {
	if err := p.Validate(); err != nil {
		return bfv.Parameters{}, err
	}

	var lit bfv.ParametersLiteral
	switch p.PolyDegree {
	case 4096:
		lit = bfv.PN12QP109
	case 8192:
		lit = bfv.PN13QP218
	case 16384:
		lit = bfv.PN14QP438
	}
	lit.T = p.PlainModulus

	params, err := bfv.NewParametersFromLiteral(lit)
	if err != nil {
		return bfv.Parameters{}, fmt.Errorf("build lattice parameters: %w", err)
	}
	return params, nil
}
