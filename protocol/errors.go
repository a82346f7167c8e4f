package protocol

import "errors"

// Protocol error taxonomy. Callers discriminate with errors.Is; every
// error below may arrive wrapped with position or phase context.
var (
	// ErrInvalidSegments is returned when a mapping is requested or
	// validated with fewer than one segment.
	ErrInvalidSegments = errors.New("segment count must be at least 1")

	// ErrInvalidLength is returned when a mapping is requested with a
	// non-positive length.
	ErrInvalidLength = errors.New("mapping length must be at least 1")

	// ErrAlphabet is returned when input contains a symbol outside the
	// 95-symbol protocol alphabet.
	ErrAlphabet = errors.New("symbol outside protocol alphabet")

	// ErrLengthMismatch is returned when registered data and the mapping
	// table disagree on the number of positions.
	ErrLengthMismatch = errors.New("sequence length mismatch")

	// ErrCommitmentMismatch is returned when a revealed mapping table does
	// not hash to the committed digest.
	ErrCommitmentMismatch = errors.New("commitment mismatch")

	// ErrUncorrectable is returned when the error-coded prize has more
	// corrupted bytes than the parity budget can repair.
	ErrUncorrectable = errors.New("prize data uncorrectable")

	// ErrInvalidPhase is returned when an engine operation runs outside
	// its place in the protocol order.
	ErrInvalidPhase = errors.New("operation not valid in current phase")
)
