package protocol

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrizeEncodeDecode(t *testing.T) {
	prize, err := NewPrize()
	require.NoError(t, err)

	coded, err := EncodePrize(prize)
	require.NoError(t, err)
	require.Len(t, coded, PrizeTotalBytes)

	// The code is systematic: the prize rides in front of the parity.
	require.Equal(t, prize[:], coded[:PrizeDataBytes])

	decoded, err := DecodePrize(coded)
	require.NoError(t, err)
	require.Equal(t, prize, decoded)
}

func TestPrizeCorrectionBudget(t *testing.T) {
	prize, err := NewPrize()
	require.NoError(t, err)
	coded, err := EncodePrize(prize)
	require.NoError(t, err)

	corrupt := func(n int) []byte {
		out := append([]byte{}, coded...)
		// Spread the damage over data and parity alike.
		for i := 0; i < n; i++ {
			out[(i*5)%PrizeTotalBytes] ^= 0xff
		}
		return out
	}

	// Up to half the parity bytes' worth of unknown-position errors decode.
	for n := 1; n <= PrizeParityBytes/2; n++ {
		decoded, err := DecodePrize(corrupt(n))
		require.NoError(t, err, "%d corrupted bytes", n)
		require.Equal(t, prize, decoded, "%d corrupted bytes", n)
	}

	// One error past the budget is rejected rather than miscorrected.
	_, err = DecodePrize(corrupt(PrizeParityBytes/2 + 1))
	require.ErrorIs(t, err, ErrUncorrectable)

	_, err = DecodePrize(coded[:PrizeTotalBytes-1])
	require.Error(t, err)
}

func TestPrizeStringRoundTrip(t *testing.T) {
	prize, err := NewPrize()
	require.NoError(t, err)

	s := prize.String()
	require.Len(t, s, 2+2*PrizeDataBytes)
	require.Equal(t, "0x", s[:2])

	parsed, err := ParsePrize(s)
	require.NoError(t, err)
	require.Equal(t, prize, parsed)

	_, err = ParsePrize("deadbeef")
	require.Error(t, err)
	_, err = ParsePrize("0x" + s[2:4])
	require.Error(t, err)
	_, err = ParsePrize("0x" + "zz" + s[4:])
	require.Error(t, err)
}

func TestLockUnlockChunks(t *testing.T) {
	prize, err := NewPrize()
	require.NoError(t, err)
	coded, err := EncodePrize(prize)
	require.NoError(t, err)

	salt := make([]byte, 32)
	_, err = rand.Read(salt)
	require.NoError(t, err)
	sequence := []uint64{3, 1, 4, 1, 5}

	locked := LockChunks(coded, salt, sequence)
	require.Len(t, locked, len(coded))
	require.NotEqual(t, coded, locked)

	unlocked := UnlockChunks(locked, salt, sequence)
	require.Equal(t, coded, unlocked)

	// A wrong sequence scrambles everything; the decode step catches it.
	garbled := UnlockChunks(locked, salt, []uint64{3, 1, 4, 1, 6})
	require.NotEqual(t, coded, garbled)
	_, err = DecodePrize(garbled)
	require.ErrorIs(t, err, ErrUncorrectable)

	// And so does a wrong salt with the right sequence.
	badSalt := append([]byte{}, salt...)
	badSalt[0] ^= 1
	garbled = UnlockChunks(locked, badSalt, sequence)
	_, err = DecodePrize(garbled)
	require.ErrorIs(t, err, ErrUncorrectable)
}
