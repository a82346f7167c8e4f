package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
)

// PositionMap assigns a segment number to every alphabet symbol at one
// secret position. Keys are single-symbol strings so the table serializes
// as a JSON object.
type PositionMap map[string]int

// MappingTable is the per-position sequence of segment assignments. The
// verifier generates one table per secret and commits to it before the
// owner registers anything.
type MappingTable []PositionMap

// GenerateMappings builds a fresh random table with one PositionMap per
// secret position. Each position shuffles the alphabet, shuffles the
// segment numbers 1..segments, and hands each contiguous run of
// ceil(95/segments) shuffled symbols the next shuffled segment number.
// Every symbol is covered and every value lands in [1, segments].
func GenerateMappings(length, segments int) (MappingTable, error) {
	if length < 1 {
		return nil, fmt.Errorf("length %d: %w", length, ErrInvalidLength)
	}
	if segments < 1 {
		return nil, fmt.Errorf("segments %d: %w", segments, ErrInvalidSegments)
	}

	table := make(MappingTable, 0, length)
	perSegment := (AlphabetSize + segments - 1) / segments
	for pos := 0; pos < length; pos++ {
		chars := []byte(alphabetSymbols)
		if err := shuffle(chars); err != nil {
			return nil, err
		}
		numbers := make([]int, segments)
		for i := range numbers {
			numbers[i] = i + 1
		}
		if err := shuffle(numbers); err != nil {
			return nil, err
		}

		pm := make(PositionMap, len(chars))
		for i, c := range chars {
			pm[string(c)] = numbers[i/perSegment]
		}
		table = append(table, pm)
	}
	return table, nil
}

// shuffle permutes s in place with a Fisher-Yates walk driven by crypto/rand.
func shuffle[T any](s []T) error {
	for i := len(s) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("draw shuffle index: %w", err)
		}
		j := n.Int64()
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// SequenceFor looks up each input symbol in its position map and returns the
// resulting segment sequence. Symbols absent from a position map count as 0.
// Inputs longer than the table cannot be sequenced.
func (t MappingTable) SequenceFor(alpha *Alphabet, input string) ([]uint64, error) {
	if len(input) > len(t) {
		return nil, fmt.Errorf("input %d positions, table %d: %w", len(input), len(t), ErrLengthMismatch)
	}
	if err := alpha.ValidateString(input); err != nil {
		return nil, err
	}

	seq := make([]uint64, len(input))
	for i := 0; i < len(input); i++ {
		v := t[i][string(input[i])]
		if v < 0 {
			return nil, fmt.Errorf("position %d value %d: %w", i, v, ErrInvalidSegments)
		}
		seq[i] = uint64(v)
	}
	return seq, nil
}

// RowWeights flattens one position map into a weight vector in alphabet
// order, the plaintext side of the transform dot product. Symbols missing
// from the map weigh 0.
func (t MappingTable) RowWeights(alpha *Alphabet, position int) ([]uint64, error) {
	if position < 0 || position >= len(t) {
		return nil, fmt.Errorf("position %d of %d: %w", position, len(t), ErrLengthMismatch)
	}

	weights := make([]uint64, alpha.Size())
	for i := range weights {
		sym, err := alpha.Symbol(i)
		if err != nil {
			return nil, err
		}
		if v, ok := t[position][string(sym)]; ok && v > 0 {
			weights[i] = uint64(v)
		}
	}
	return weights, nil
}

// ExtendTo pads the table with freshly generated positions until it reaches
// the exposed length, hiding the true secret length from anyone who only
// sees the stored table. Padding positions come from the same generator as
// real ones and are indistinguishable from them. Tables already at or past
// the exposed length are returned unchanged.
func (t MappingTable) ExtendTo(exposed, segments int) (MappingTable, error) {
	if len(t) >= exposed {
		return t, nil
	}
	pad, err := GenerateMappings(exposed-len(t), segments)
	if err != nil {
		return nil, fmt.Errorf("generate padding: %w", err)
	}

	out := make(MappingTable, 0, exposed)
	out = append(out, t...)
	out = append(out, pad...)
	return out, nil
}

// CanonicalJSON renders the table deterministically. encoding/json sorts
// object keys, so two equal tables always produce identical bytes. Both the
// commitment digest and the vault's dedup hash are computed over this form.
func (t MappingTable) CanonicalJSON() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal mapping table: %w", err)
	}
	return data, nil
}

// Validate checks that every key is a single alphabet symbol and every
// value lies in [1, segments].
func (t MappingTable) Validate(segments int) error {
	if segments < 1 {
		return fmt.Errorf("segments %d: %w", segments, ErrInvalidSegments)
	}
	if len(t) == 0 {
		return fmt.Errorf("empty table: %w", ErrInvalidLength)
	}

	alpha := NewAlphabet()
	for pos, pm := range t {
		for key, v := range pm {
			if len(key) != 1 || !alpha.Contains(key[0]) {
				return fmt.Errorf("position %d key %q: %w", pos, key, ErrAlphabet)
			}
			if v < 1 || v > segments {
				return fmt.Errorf("position %d symbol %q value %d: %w", pos, key, v, ErrInvalidSegments)
			}
		}
	}
	return nil
}
