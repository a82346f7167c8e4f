package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/vivint/infectious"
)

// Prize chunk geometry. The 256-bit prize is split into data bytes and
// extended with Reed-Solomon parity so a near-miss keystream cannot be
// massaged into the real value, while honest transport noise up to the
// parity budget still decodes.
const (
	// PrizeDataBytes is the raw prize size.
	PrizeDataBytes = 32

	// PrizeParityBytes is the number of appended parity bytes.
	PrizeParityBytes = 16

	// PrizeTotalBytes is the coded prize length.
	PrizeTotalBytes = PrizeDataBytes + PrizeParityBytes
)

// Prize is the 256-bit value released by a successful match.
type Prize [PrizeDataBytes]byte

// NewPrize draws a fresh random prize.
func NewPrize() (Prize, error) {
	var p Prize
	if _, err := rand.Read(p[:]); err != nil {
		return Prize{}, fmt.Errorf("draw prize: %w", err)
	}
	return p, nil
}

// String renders the prize as 0x followed by 64 hex digits.
func (p Prize) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

// ParsePrize reads the String form back into a Prize.
func ParsePrize(s string) (Prize, error) {
	var p Prize
	if len(s) != 2+2*PrizeDataBytes || s[:2] != "0x" {
		return p, fmt.Errorf("prize literal %q: want 0x and %d hex digits", s, 2*PrizeDataBytes)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return p, fmt.Errorf("prize literal: %w", err)
	}
	copy(p[:], raw)
	return p, nil
}

// EncodePrize expands the prize to its error-coded form: a systematic
// Reed-Solomon code over one-byte shares, so the first 32 output bytes are
// the prize itself and the last 16 are parity.
func EncodePrize(p Prize) ([]byte, error) {
	fec, err := infectious.NewFEC(PrizeDataBytes, PrizeTotalBytes)
	if err != nil {
		return nil, fmt.Errorf("build prize code: %w", err)
	}

	coded := make([]byte, PrizeTotalBytes)
	err = fec.Encode(p[:], func(s infectious.Share) {
		coded[s.Number] = s.Data[0]
	})
	if err != nil {
		return nil, fmt.Errorf("encode prize: %w", err)
	}
	return coded, nil
}

// DecodePrize recovers the prize from its coded form, correcting up to 8
// corrupted bytes at unknown positions. Heavier corruption, such as bytes
// unmasked with the wrong keystream, fails with ErrUncorrectable.
func DecodePrize(coded []byte) (Prize, error) {
	var p Prize
	if len(coded) != PrizeTotalBytes {
		return p, fmt.Errorf("coded prize is %d bytes, want %d", len(coded), PrizeTotalBytes)
	}

	fec, err := infectious.NewFEC(PrizeDataBytes, PrizeTotalBytes)
	if err != nil {
		return p, fmt.Errorf("build prize code: %w", err)
	}

	shares := make([]infectious.Share, PrizeTotalBytes)
	for i := range shares {
		shares[i] = infectious.Share{Number: i, Data: []byte{coded[i]}}
	}
	data, err := fec.Decode(nil, shares)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrUncorrectable, err)
	}
	copy(p[:], data)
	return p, nil
}
