package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceKeystreamDeterministic(t *testing.T) {
	salt := []byte("sequence-salt")
	seq := []uint64{3, 7, 1, 9, 4}

	p1 := SequenceKeystream(salt, seq)
	p2 := SequenceKeystream(salt, seq)
	require.Equal(t, p1, p2)
	require.Len(t, p1, 32)
}

func TestSequenceKeystreamSensitivity(t *testing.T) {
	salt := []byte("sequence-salt")
	base := SequenceKeystream(salt, []uint64{3, 7, 1})

	require.NotEqual(t, base, SequenceKeystream(salt, []uint64{3, 7, 2}), "value change")
	require.NotEqual(t, base, SequenceKeystream(salt, []uint64{3, 7}), "length change")
	require.NotEqual(t, base, SequenceKeystream([]byte("other-salt"), []uint64{3, 7, 1}), "salt change")

	// Joining with commas keeps {12, 3} and {1, 23} distinct.
	require.NotEqual(t, SequenceKeystream(salt, []uint64{12, 3}), SequenceKeystream(salt, []uint64{1, 23}))
}

func TestXORMaskRoundTrip(t *testing.T) {
	pad := SequenceKeystream([]byte("salt"), []uint64{1, 2, 3})

	// 48 bytes exceeds the 32-byte pad, exercising the repeat.
	data := make([]byte, 48)
	for i := range data {
		data[i] = byte(i * 7)
	}

	masked := XORMask(data, pad)
	require.NotEqual(t, data, masked)
	require.Equal(t, masked[0]^pad[0], data[0])
	require.Equal(t, masked[32]^pad[0], data[32], "pad repeats every 32 bytes")

	require.Equal(t, data, XORMask(masked, pad))
}

func TestXORMaskEmptyPad(t *testing.T) {
	data := []byte{1, 2, 3}
	out := XORMask(data, nil)
	require.Equal(t, data, out)

	// Output is a copy, not an alias.
	out[0] = 9
	require.Equal(t, byte(1), data[0])
}
