// Package crypto provides cryptographic primitives for the mystery protocol.
//
// This package implements the low-level operations the protocol engine is
// built from:
//
//   - Two independent BFV lattice key domains (owner and verifier) with
//     homomorphic slot-wise multiplication, rotation-based inner sums,
//     ciphertext squaring and scalar blinding
//   - Salted SHA-256 commitments over canonical byte payloads
//   - SHA3-derived repeating keystreams for XOR masking
//   - Uniform nonzero blinder sampling over the plaintext field
//
// Note: homomorphic evaluation is not constant-time; secrecy rests on the
// lattice encryption, not on timing.
//
// # Key Domains
//
// OwnerDomain and VerifierDomain are distinct types holding full BFV key
// sets. Key isolation between the two is structural: neither type accepts
// the other's key material, and ciphertexts cross package boundaries as
// opaque byte slices. Each domain publishes an evaluation set (public key,
// relinearization key, rotation keys) so the opposite party can encrypt
// and evaluate without ever seeing a secret key.
//
// # Masking
//
// Two masking mechanisms are provided:
//   - XOR keystream masking derived from an integer sequence (SequenceKeystream)
//   - Multiplicative scalar blinding of match scores (RandomBlinder)
package crypto
