package protocol

import (
	"testing"

	"github.com/mfrager/mystery/crypto"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.Segments)
	require.Equal(t, 64, cfg.ExposedLength)
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		Params:        crypto.Params{PolyDegree: 4096, PlainModulus: 65537},
		Segments:      4,
		ExposedLength: 8,
	}
	require.NoError(t, base.Validate())

	cfg := base
	cfg.Segments = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidSegments)

	cfg = base
	cfg.ExposedLength = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidLength)

	cfg = base
	cfg.Params.PolyDegree = 1000
	require.Error(t, cfg.Validate())

	// 1 * 256^2 = 65536 just fits under the 65537 field...
	cfg = base
	cfg.Segments = 256
	cfg.ExposedLength = 1
	require.NoError(t, cfg.Validate())

	// ...and one more position would let an honest distance wrap to zero.
	cfg.ExposedLength = 2
	require.Error(t, cfg.Validate())
}
