package protocol

import "github.com/mfrager/mystery/crypto"

// LockChunks masks the coded prize bytes with the keystream derived from
// the sequence salt and the password sequence. Masking is XOR against a
// repeating 32-byte pad, so the operation is its own inverse.
func LockChunks(coded, salt []byte, sequence []uint64) []byte {
	return crypto.XORMask(coded, crypto.SequenceKeystream(salt, sequence))
}

// UnlockChunks reverses LockChunks given the same salt and sequence. A
// wrong sequence leaves the coded prize corrupted far beyond the parity
// budget, so the decode step rejects it.
func UnlockChunks(masked, salt []byte, sequence []uint64) []byte {
	return LockChunks(masked, salt, sequence)
}
