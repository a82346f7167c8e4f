package protocol

import (
	"fmt"

	"github.com/mfrager/mystery/crypto"
)

// Config holds the protocol parameters both parties must agree on.
type Config struct {
	// Params is the BFV lattice configuration for both key domains.
	Params crypto.Params `json:"params" yaml:"params"`

	// Segments is the number of distinct values a mapping position assigns,
	// drawn from [1, Segments].
	Segments int `json:"segments" yaml:"segments"`

	// ExposedLength is the obfuscated mapping length. Tables shorter than
	// this are padded with generator-made positions before leaving the
	// verifier, hiding the real secret length.
	ExposedLength int `json:"exposed_length" yaml:"exposed_length"`
}

// DefaultConfig returns the production configuration: degree-8192 lattice
// with modulus 65537, 10 segments, mappings exposed at 64 positions.
func DefaultConfig() Config {
	return Config{
		Params:        crypto.DefaultParams(),
		Segments:      10,
		ExposedLength: 64,
	}
}

// Validate checks internal consistency, including the overflow guard: an
// honest sum of squared differences over ExposedLength positions must stay
// below the plaintext modulus so it cannot wrap around to a false zero.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("lattice params: %w", err)
	}
	if c.Segments < 1 {
		return fmt.Errorf("segments %d: %w", c.Segments, ErrInvalidSegments)
	}
	if c.ExposedLength < 1 {
		return fmt.Errorf("exposed length %d: %w", c.ExposedLength, ErrInvalidLength)
	}
	if c.Segments > 1<<16 || c.ExposedLength > 1<<16 {
		return fmt.Errorf("segments %d / exposed length %d out of range", c.Segments, c.ExposedLength)
	}

	worst := uint64(c.ExposedLength) * uint64(c.Segments) * uint64(c.Segments)
	if worst >= c.Params.PlainModulus {
		return fmt.Errorf("exposed_length*segments^2 = %d overflows plain modulus %d", worst, c.Params.PlainModulus)
	}
	return nil
}
