package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateMappingsCoverage(t *testing.T) {
	const segments = 4
	table, err := GenerateMappings(5, segments)
	require.NoError(t, err)
	require.Len(t, table, 5)
	require.NoError(t, table.Validate(segments))

	for pos, pm := range table {
		require.Len(t, pm, AlphabetSize, "position %d", pos)

		seen := make(map[int]int, segments)
		for sym, v := range pm {
			require.Len(t, sym, 1)
			require.GreaterOrEqual(t, v, 1)
			require.LessOrEqual(t, v, segments)
			seen[v]++
		}
		// Contiguous runs of ceil(95/segments) symbols guarantee every
		// segment number appears at least once.
		require.Len(t, seen, segments, "position %d", pos)
	}
}

func TestGenerateMappingsRandomized(t *testing.T) {
	a, err := GenerateMappings(3, 6)
	require.NoError(t, err)
	b, err := GenerateMappings(3, 6)
	require.NoError(t, err)

	aJSON, err := a.CanonicalJSON()
	require.NoError(t, err)
	bJSON, err := b.CanonicalJSON()
	require.NoError(t, err)
	require.NotEqual(t, aJSON, bJSON)
}

func TestGenerateMappingsRejects(t *testing.T) {
	_, err := GenerateMappings(0, 4)
	require.ErrorIs(t, err, ErrInvalidLength)
	_, err = GenerateMappings(3, 0)
	require.ErrorIs(t, err, ErrInvalidSegments)
}

func TestSequenceForMatchesRowWeights(t *testing.T) {
	alpha := NewAlphabet()
	table, err := GenerateMappings(4, 5)
	require.NoError(t, err)

	input := "gO! "
	seq, err := table.SequenceFor(alpha, input)
	require.NoError(t, err)
	require.Len(t, seq, len(input))

	// The weight vector used by the homomorphic transform must agree with
	// the direct lookup at the one-hot position.
	for i := 0; i < len(input); i++ {
		weights, err := table.RowWeights(alpha, i)
		require.NoError(t, err)
		require.Len(t, weights, alpha.Size())

		idx, err := alpha.Index(input[i])
		require.NoError(t, err)
		require.Equal(t, seq[i], weights[idx], "position %d", i)
	}
}

func TestSequenceForRejects(t *testing.T) {
	alpha := NewAlphabet()
	table, err := GenerateMappings(3, 4)
	require.NoError(t, err)

	_, err = table.SequenceFor(alpha, "four")
	require.ErrorIs(t, err, ErrLengthMismatch)
	_, err = table.SequenceFor(alpha, "a\nb")
	require.ErrorIs(t, err, ErrAlphabet)
}

func TestRowWeightsBounds(t *testing.T) {
	table, err := GenerateMappings(2, 3)
	require.NoError(t, err)

	alpha := NewAlphabet()
	_, err = table.RowWeights(alpha, -1)
	require.ErrorIs(t, err, ErrLengthMismatch)
	_, err = table.RowWeights(alpha, 2)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestExtendTo(t *testing.T) {
	const segments = 4
	table, err := GenerateMappings(3, segments)
	require.NoError(t, err)

	extended, err := table.ExtendTo(8, segments)
	require.NoError(t, err)
	require.Len(t, extended, 8)
	require.NoError(t, extended.Validate(segments))

	// The real positions survive unchanged at the front.
	for i := range table {
		require.Equal(t, table[i], extended[i], "position %d", i)
	}

	// Already long enough: returned as is.
	same, err := extended.ExtendTo(4, segments)
	require.NoError(t, err)
	require.Len(t, same, 8)
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	table, err := GenerateMappings(2, 4)
	require.NoError(t, err)

	first, err := table.CanonicalJSON()
	require.NoError(t, err)

	// A value-equal copy built in a different insertion order serializes to
	// the same bytes, which is what the commitment digest depends on.
	clone := make(MappingTable, len(table))
	for i, pm := range table {
		cp := make(PositionMap, len(pm))
		for _, sym := range []byte(alphabetSymbols) {
			cp[string(sym)] = pm[string(sym)]
		}
		clone[i] = cp
	}
	second, err := clone.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestMappingTableValidate(t *testing.T) {
	good, err := GenerateMappings(2, 4)
	require.NoError(t, err)
	require.NoError(t, good.Validate(4))

	require.ErrorIs(t, MappingTable{}.Validate(4), ErrInvalidLength)
	require.ErrorIs(t, good.Validate(0), ErrInvalidSegments)

	zeroValue := MappingTable{{"a": 0}}
	require.ErrorIs(t, zeroValue.Validate(4), ErrInvalidSegments)

	tooBig := MappingTable{{"a": 5}}
	require.ErrorIs(t, tooBig.Validate(4), ErrInvalidSegments)

	badKey := MappingTable{{"ab": 1}}
	require.ErrorIs(t, badKey.Validate(4), ErrAlphabet)

	outsideKey := MappingTable{{"\n": 1}}
	require.ErrorIs(t, outsideKey.Validate(4), ErrAlphabet)
}
