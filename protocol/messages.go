package protocol

import (
	"encoding/json"
	"io"
)

// CommitmentPackage is the verifier's opening material for the mapping
// commitment. The owner is shown only Digest at commit time; Salt, the
// table, and SequenceSalt stay with the verifier until the reveal.
type CommitmentPackage struct {
	// Digest is the hex SHA-256 over Salt and the canonical table JSON.
	Digest string `json:"digest"`

	// Salt is the 32-byte commitment salt.
	Salt []byte `json:"salt"`

	// Mappings is the committed table.
	Mappings MappingTable `json:"mappings"`

	// SequenceSalt seeds the prize keystream. It is independent of Salt so
	// opening the commitment does not weaken the keystream derivation.
	SequenceSalt []byte `json:"sequence_salt"`
}

// PrizeData carries the error-coded prize, one scalar ciphertext per coded
// byte, encrypted under the owner public key.
type PrizeData struct {
	// ChunksForOwner holds one serialized ciphertext per coded prize byte.
	ChunksForOwner [][]byte `json:"encrypted_chunks"`

	// ChunkBits is the payload width of each chunk. Always 8.
	ChunkBits int `json:"chunk_bits"`

	// NumChunks is the coded prize length in bytes.
	NumChunks int `json:"num_chunks"`

	// ParityBytes is the Reed-Solomon parity share of NumChunks.
	ParityBytes int `json:"parity_bytes"`

	// DataBytes is the raw prize share of NumChunks.
	DataBytes int `json:"data_bytes"`
}

// RevealPackage is the verifier's transform output together with the opened
// commitment. The owner checks the digest before touching anything else.
type RevealPackage struct {
	// Transformed holds one dot-product ciphertext per secret position,
	// still under the owner key.
	Transformed [][]byte `json:"transformed"`

	// Salt opens the commitment.
	Salt []byte `json:"salt"`

	// Mappings is the revealed table.
	Mappings MappingTable `json:"mappings"`

	// SequenceSalt seeds the prize keystream.
	SequenceSalt []byte `json:"sequence_salt"`
}

// PrizeBundle is the keystream-masked prize re-encrypted under the verifier
// public key.
type PrizeBundle struct {
	// Chunks holds one serialized ciphertext per masked coded byte.
	Chunks [][]byte `json:"encrypted_chunks"`

	// SequenceSalt lets the verifier re-derive the keystream from a
	// candidate sequence.
	SequenceSalt []byte `json:"sequence_salt"`

	ChunkBits   int `json:"chunk_bits"`
	NumChunks   int `json:"num_chunks"`
	ParityBytes int `json:"parity_bytes"`
}

// FinalPackage is everything the verifier needs to run Verify: the password
// sequence re-encrypted under the verifier key and the masked prize. The
// plaintext sequence and the keystream never appear in it.
type FinalPackage struct {
	SequenceData [][]byte    `json:"sequence_data"`
	Prize        PrizeBundle `json:"prize"`
}

// VerifyResult reports one verification outcome. A mismatch is a result,
// not an error, so IsMatch false arrives with a nil error and no prize.
type VerifyResult struct {
	IsMatch bool   `json:"is_match"`
	Prize   *Prize `json:"prize_value,omitempty"`
}

// UnmarshalMessage deserializes a message from JSON.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}
