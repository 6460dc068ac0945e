package selector

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the width of a selector in bytes.
const Size = 4

// ErrInvalidSelector is returned when a textual selector cannot be parsed.
var ErrInvalidSelector = errors.New("invalid selector")

// Selector identifies one entry point of an implementation.
type Selector [Size]byte

// FromSignature derives the selector of a canonical signature such as
// "func12()" or "transfer(address,uint256)": the first four bytes of its
// Keccak-256 hash.
func FromSignature(signature string) Selector {
	var s Selector
	sum := Keccak256([]byte(strings.TrimSpace(signature)))
	copy(s[:], sum[:Size])
	return s
}

// Parse decodes a hex selector with or without the 0x prefix.
func Parse(text string) (Selector, error) {
	var s Selector

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text) != Size*2 {
		return s, ErrInvalidSelector
	}

	raw, err := hex.DecodeString(text)
	if err != nil {
		return s, ErrInvalidSelector
	}
	copy(s[:], raw)
	return s, nil
}

// MustParse is like [Parse] but panics on malformed input. Intended for
// package-level constants and tests.
func MustParse(text string) Selector {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// String renders the selector as 0x-prefixed lowercase hex.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// IsZero reports whether s is the all-zero selector.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Keccak256 returns the legacy (pre-standard) Keccak-256 digest of data.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		_, _ = h.Write(d)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
