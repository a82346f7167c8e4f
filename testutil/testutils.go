package testutil

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mfrager/mystery/crypto"
	"github.com/mfrager/mystery/protocol"
)

// TestConfigOption customizes a protocol config fixture.
type TestConfigOption func(*protocol.Config)

// WithPolyDegree sets the BFV ring degree.
func WithPolyDegree(degree int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.Params.PolyDegree = degree
	}
}

// WithPlainModulus sets the plaintext modulus.
func WithPlainModulus(modulus uint64) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.Params.PlainModulus = modulus
	}
}

// WithSegments sets the mapping segment count.
func WithSegments(segments int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.Segments = segments
	}
}

// WithExposedLength sets the obfuscated mapping length.
func WithExposedLength(length int) TestConfigOption {
	return func(cfg *protocol.Config) {
		cfg.ExposedLength = length
	}
}

// NewTestConfig creates a protocol config sized for tests. The degree-4096
// ring is below production size but runs the same code paths, keeping key
// generation cheap.
func NewTestConfig(options ...TestConfigOption) *protocol.Config {
	cfg := &protocol.Config{
		Params:        crypto.Params{PolyDegree: 4096, PlainModulus: 65537},
		Segments:      4,
		ExposedLength: 8,
	}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

// GenerateRandomBytes returns length cryptographically random bytes.
func GenerateRandomBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateTestSecret returns a random secret of the given length drawn
// uniformly from the protocol alphabet.
func GenerateTestSecret(length int) (string, error) {
	alpha := protocol.NewAlphabet()
	size := big.NewInt(int64(alpha.Size()))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("draw symbol %d: %w", i, err)
		}
		sym, err := alpha.Symbol(int(n.Int64()))
		if err != nil {
			return "", err
		}
		out[i] = sym
	}
	return string(out), nil
}

// GenerateTestMapping creates a random mapping table using the config's
// segment count.
func GenerateTestMapping(cfg *protocol.Config, length int) (protocol.MappingTable, error) {
	return protocol.GenerateMappings(length, cfg.Segments)
}
