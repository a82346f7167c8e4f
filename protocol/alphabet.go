package protocol

import "fmt"

// alphabetSymbols lists the 95 printable ASCII symbols in protocol order:
// lowercase letters, uppercase letters, digits, punctuation, space. Every
// party derives one-hot positions and weight rows from this order, so it is
// fixed for the lifetime of the protocol.
const alphabetSymbols = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
	" "

// AlphabetSize is the number of symbols in the protocol alphabet.
const AlphabetSize = 95

// Alphabet maps between protocol symbols and their one-hot positions.
type Alphabet struct {
	index [128]int8
}

// NewAlphabet builds the protocol alphabet codec.
func NewAlphabet() *Alphabet {
	a := &Alphabet{}
	for i := range a.index {
		a.index[i] = -1
	}
	for i := 0; i < len(alphabetSymbols); i++ {
		a.index[alphabetSymbols[i]] = int8(i)
	}
	return a
}

// Size returns the number of symbols in the alphabet.
func (a *Alphabet) Size() int {
	return AlphabetSize
}

// Contains reports whether b is a protocol symbol.
func (a *Alphabet) Contains(b byte) bool {
	return b < 128 && a.index[b] >= 0
}

// Index returns the one-hot position of a symbol.
func (a *Alphabet) Index(b byte) (int, error) {
	if !a.Contains(b) {
		return 0, fmt.Errorf("byte 0x%02x: %w", b, ErrAlphabet)
	}
	return int(a.index[b]), nil
}

// Symbol returns the symbol at a one-hot position.
func (a *Alphabet) Symbol(i int) (byte, error) {
	if i < 0 || i >= AlphabetSize {
		return 0, fmt.Errorf("position %d out of range: %w", i, ErrAlphabet)
	}
	return alphabetSymbols[i], nil
}

// OneHot encodes a symbol as a length-95 selector vector with a single 1 at
// the symbol's position.
func (a *Alphabet) OneHot(b byte) ([]uint64, error) {
	idx, err := a.Index(b)
	if err != nil {
		return nil, err
	}
	v := make([]uint64, AlphabetSize)
	v[idx] = 1
	return v, nil
}

// ValidateString checks that every byte of s is a protocol symbol. Multi-byte
// runes fail because their bytes fall outside printable ASCII.
func (a *Alphabet) ValidateString(s string) error {
	for i := 0; i < len(s); i++ {
		if !a.Contains(s[i]) {
			return fmt.Errorf("position %d, byte 0x%02x: %w", i, s[i], ErrAlphabet)
		}
	}
	return nil
}

// Symbols returns the alphabet in protocol order.
func (a *Alphabet) Symbols() string {
	return alphabetSymbols
}
