package testutil

import (
	"testing"

	"github.com/mfrager/mystery/protocol"
	"github.com/stretchr/testify/require"
)

func TestNewTestConfigOptions(t *testing.T) {
	cfg := NewTestConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 4096, cfg.Params.PolyDegree)

	cfg = NewTestConfig(
		WithPolyDegree(8192),
		WithPlainModulus(65537),
		WithSegments(10),
		WithExposedLength(64),
	)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 8192, cfg.Params.PolyDegree)
	require.Equal(t, uint64(65537), cfg.Params.PlainModulus)
	require.Equal(t, 10, cfg.Segments)
	require.Equal(t, 64, cfg.ExposedLength)
}

func TestGenerateRandomBytes(t *testing.T) {
	a, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	require.Len(t, a, 32)

	b, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGenerateTestSecret(t *testing.T) {
	alpha := protocol.NewAlphabet()
	secret, err := GenerateTestSecret(24)
	require.NoError(t, err)
	require.Len(t, secret, 24)
	require.NoError(t, alpha.ValidateString(secret))
}

func TestGenerateTestMapping(t *testing.T) {
	cfg := NewTestConfig(WithSegments(5))
	table, err := GenerateTestMapping(cfg, 6)
	require.NoError(t, err)
	require.Len(t, table, 6)
	require.NoError(t, table.Validate(cfg.Segments))
}
