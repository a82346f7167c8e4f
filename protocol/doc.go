// Package protocol implements a commitment-checked proof-of-possession
// exchange over homomorphic encryption. An owner proves knowledge of a
// secret string to a verifier without ever sending the string, and a
// successful proof releases a 256-bit prize that neither party can extract
// ahead of time.
//
// # Parties and Trust
//
// The protocol runs between two parties with independent BFV key domains:
//
//  1. Owner: holds the secret string. Registers it character by character as
//     one-hot encrypted vectors under the owner key, and later opens the
//     verifier's commitment during finalization. The owner key domain is the
//     only place the registered characters ever decrypt.
//
//  2. Verifier: generates the per-position mapping table that turns the
//     secret into a segment-number sequence, commits to the table before
//     seeing any owner data, and evaluates match attempts. The verifier key
//     domain is the only place finalized sequence values ever decrypt.
//
// Neither party learns the other's secrets: the owner never sees candidate
// targets, the verifier never sees the secret string, and a failed match
// attempt reveals only that it failed.
//
// # Phases
//
// A challenge instance moves through five phases after key provisioning,
// tracked by the Engine and enforced with ErrInvalidPhase:
//
//  1. Commit: the verifier generates a MappingTable (one shuffled
//     symbol-to-segment map per secret position), serializes it
//     canonically, and publishes a salted digest. The table itself stays
//     private until finalization.
//
//  2. Register: the owner one-hot encodes every character of the secret
//     over the 95-symbol alphabet and encrypts each vector under the owner
//     key. One ciphertext per position leaves the owner.
//
//  3. Transform: the verifier multiplies each registered ciphertext
//     slot-wise by its position's weight row and folds the products into
//     slot zero with a rotation inner sum. Applied to a one-hot vector this
//     is a dot product: the result encrypts exactly the segment number the
//     secret character maps to. The arithmetic runs under the owner's
//     public evaluation keys; results stay encrypted under the owner key.
//
//  4. Finalize: the verifier reveals the table and salt. The owner rehashes
//     and aborts with ErrCommitmentMismatch on any discrepancy, then
//     decrypts the transformed sequence, derives a keystream from it, masks
//     the error-coded prize bytes, and re-encrypts both sequence and prize
//     under the verifier key. The plaintext sequence exists only inside
//     this step.
//
//  5. Verify: the verifier takes a candidate target sequence, computes the
//     encrypted sum of squared differences against the finalized sequence,
//     multiplies it by a fresh random blinder, and decrypts. Zero means
//     match; anything else decrypts to a uniformly blinded value that
//     reveals nothing about how close the candidate was. On a match the
//     target re-derives the keystream, unmasks the prize chunks, and the
//     error-correcting decode recovers the prize.
//
// # Prize Pipeline
//
// The prize is a 32-byte value expanded to 48 bytes with a systematic
// Reed-Solomon code before encryption. Masking happens byte-wise with a
// SHA3-derived keystream, so a wrong candidate sequence scrambles far more
// bytes than the parity budget can repair and the decode rejects it with
// ErrUncorrectable, while up to 8 corrupted bytes from honest transport
// still decode. The prize value itself never appears in any stored or
// transmitted package.
//
// # Length Hiding
//
// Mapping tables handed to authenticating parties are padded with
// generator-made positions up to a configured exposed length
// (MappingTable.ExtendTo), so the stored table does not betray the real
// secret length. Padding positions are indistinguishable from real ones;
// candidates derive their target from the prefix matching their own
// secret's length.
//
// # Distributed Use
//
// Engine drives a whole challenge in one process and suits tests and
// owner-side tooling. Deployments that split the roles carry the package
// types (CommitmentPackage, RevealPackage, FinalPackage) between parties
// and call the stateless OwnerMessager and VerifierMessager steps directly;
// the vault service stores FinalPackage blobs and runs only verifier-side
// steps.
package protocol
