package permission

import (
	"errors"
	"math/big"
	"strings"
)

// Mask is the interface satisfied by all feature mask widths
// ([Mask64], [Mask128], [Mask256], [Mask512]). Bit positions outside the
// width are ignored by Set/Clear and reported unset by Has.
type Mask interface {
	Has(bit int) bool
	Set(bit int)
	Clear(bit int)
	Width() int
	Clone() Mask
}

var (
	// ErrInvalidWidth is returned for mask widths other than 64/128/256/512.
	ErrInvalidWidth = errors.New("invalid mask width")
	// ErrInvalidMask is returned when a textual mask cannot be parsed or does
	// not fit the requested width.
	ErrInvalidMask = errors.New("invalid mask")
)

// ValidWidth reports whether bits is a supported mask width.
func ValidWidth(bits int) bool {
	return bits == 64 || bits == 128 || bits == 256 || bits == 512
}

// NewMask returns an empty mask of the given width.
func NewMask(width int) (Mask, error) {
	switch width {
	case 64:
		m := Mask64(0)
		return &m, nil
	case 128:
		return &Mask128{}, nil
	case 256:
		return &Mask256{}, nil
	case 512:
		return &Mask512{}, nil
	default:
		return nil, ErrInvalidWidth
	}
}

// MaskFromUint64 returns a mask of the given width whose low 64 bits are v.
func MaskFromUint64(width int, v uint64) (Mask, error) {
	m, err := NewMask(width)
	if err != nil {
		return nil, err
	}
	for bit := 0; bit < 64; bit++ {
		if v&(1<<bit) != 0 {
			m.Set(bit)
		}
	}
	return m, nil
}

// ParseMask parses "0b1010", "0x0a" or decimal "10" into a mask of the
// given width. Underscores are accepted as digit separators.
func ParseMask(width int, text string) (Mask, error) {
	m, err := NewMask(width)
	if err != nil {
		return nil, err
	}

	text = strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	base := 10
	switch {
	case strings.HasPrefix(text, "0b"), strings.HasPrefix(text, "0B"):
		base, text = 2, text[2:]
	case strings.HasPrefix(text, "0x"), strings.HasPrefix(text, "0X"):
		base, text = 16, text[2:]
	}
	if text == "" {
		return nil, ErrInvalidMask
	}

	v, ok := new(big.Int).SetString(text, base)
	if !ok || v.Sign() < 0 || v.BitLen() > width {
		return nil, ErrInvalidMask
	}
	for bit := 0; bit < v.BitLen(); bit++ {
		if v.Bit(bit) == 1 {
			m.Set(bit)
		}
	}
	return m, nil
}

// FormatMask renders m as a 0b-prefixed binary string without leading zeros.
func FormatMask(m Mask) string {
	if m == nil {
		return "0b0"
	}
	v := new(big.Int)
	for bit := 0; bit < m.Width(); bit++ {
		if m.Has(bit) {
			v.SetBit(v, bit, 1)
		}
	}
	return "0b" + v.Text(2)
}

// Permits reports whether m authorizes the entry point with the given
// registry id. Id 0 is the registry's not-found sentinel and is never
// permitted.
func Permits(m Mask, id uint32) bool {
	if m == nil || id == 0 {
		return false
	}
	return m.Has(int(id) - 1)
}

// Grant sets the bit governing id.
func Grant(m Mask, id uint32) {
	if m == nil || id == 0 {
		return
	}
	m.Set(int(id) - 1)
}

// Revoke clears the bit governing id.
func Revoke(m Mask, id uint32) {
	if m == nil || id == 0 {
		return
	}
	m.Clear(int(id) - 1)
}
