package permission

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// EncodeMask serializes a mask as big-endian 64-bit words, lowest word
// first: 8, 16, 32, or 64 bytes depending on width.
func EncodeMask(mask Mask) ([]byte, error) {
	buf := new(bytes.Buffer)
	write := func(v uint64) error {
		return binary.Write(buf, binary.BigEndian, v)
	}

	switch m := mask.(type) {
	case *Mask64:
		return uint64ToBytes(uint64(*m)), nil
	case *Mask128:
		for _, w := range []uint64{m.A, m.B} {
			if err := write(w); err != nil {
				return nil, err
			}
		}
	case *Mask256:
		for _, w := range []uint64{m.A, m.B, m.C, m.D} {
			if err := write(w); err != nil {
				return nil, err
			}
		}
	case *Mask512:
		for _, w := range []uint64{m.A, m.B, m.C, m.D, m.E, m.F, m.G, m.H} {
			if err := write(w); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("invalid mask type")
	}

	return buf.Bytes(), nil
}

// DecodeMask is the inverse of [EncodeMask]; the width is inferred from the
// payload length.
func DecodeMask(data []byte) (Mask, error) {
	word := func(i int) uint64 {
		return binary.BigEndian.Uint64(data[i*8 : (i+1)*8])
	}

	switch len(data) {
	case 8:
		m := Mask64(word(0))
		return &m, nil
	case 16:
		return &Mask128{A: word(0), B: word(1)}, nil
	case 32:
		return &Mask256{A: word(0), B: word(1), C: word(2), D: word(3)}, nil
	case 64:
		return &Mask512{
			A: word(0),
			B: word(1),
			C: word(2),
			D: word(3),
			E: word(4),
			F: word(5),
			G: word(6),
			H: word(7),
		}, nil
	default:
		return nil, errors.New("invalid mask size")
	}
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
