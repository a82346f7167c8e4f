package crypto

import (
	"strconv"

	"golang.org/x/crypto/sha3"
)

// SequenceKeystream derives a 32-byte XOR pad from a salt and an integer
// sequence. The sequence is rendered as comma-joined decimals before
// hashing, so the same values always derive the same pad and any change to
// a single value changes the whole pad.
func SequenceKeystream(salt []byte, sequence []uint64) []byte {
	buf := make([]byte, 0, len(salt)+len(sequence)*6)
	buf = append(buf, salt...)
	for i, v := range sequence {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, v, 10)
	}

	pad := sha3.Sum256(buf)
	return pad[:]
}

// XORMask XOR-combines data with a repeating pad and returns the result.
// The operation is its own inverse. An empty pad returns an unmasked copy.
func XORMask(data, pad []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if len(pad) == 0 {
		return out
	}
	for i := range out {
		out[i] ^= pad[i%len(pad)]
	}
	return out
}
