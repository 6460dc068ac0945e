package goClone

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/MrEthical07/goClone/selector"
	"github.com/google/uuid"
)

// AddressSize is the byte width of factory, implementation, and proxy
// addresses.
const AddressSize = 20

// ErrInvalidAddress is returned when a textual address cannot be parsed.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a factory, an implementation, or a proxy instance.
type Address [AddressSize]byte

// String renders a as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a hex address with or without the 0x prefix.
func ParseAddress(text string) (Address, error) {
	var a Address

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text) != AddressSize*2 {
		return a, ErrInvalidAddress
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return a, ErrInvalidAddress
	}
	copy(a[:], raw)
	return a, nil
}

// addressFromHash takes the low 20 bytes of a Keccak-256 digest.
func addressFromHash(sum [32]byte) Address {
	var a Address
	copy(a[:], sum[32-AddressSize:])
	return a
}

// deriveProxyAddress is keccak256(factory || bigEndian(nonce))[12:].
func deriveProxyAddress(factory Address, nonce uint64) Address {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return addressFromHash(selector.Keccak256(factory[:], n[:]))
}

// NewFactoryAddress returns a random factory address seeded from a v4 UUID.
func NewFactoryAddress() Address {
	id := uuid.New()
	return addressFromHash(selector.Keccak256([]byte("goclone/factory"), id[:]))
}
