package permission

// Mask256 is a 256-bit feature mask covering entry point ids 1..256.
type Mask256 struct {
	A uint64
	B uint64
	C uint64
	D uint64
}

func (m *Mask256) word(bit int) *uint64 {
	switch bit / 64 {
	case 0:
		return &m.A
	case 1:
		return &m.B
	case 2:
		return &m.C
	default:
		return &m.D
	}
}

// Has reports whether the given bit is set.
func (m *Mask256) Has(bit int) bool {
	if bit < 0 || bit >= 256 {
		return false
	}
	return (*m.word(bit) & (1 << (bit % 64))) != 0
}

// Set sets the given bit in the mask.
func (m *Mask256) Set(bit int) {
	if bit < 0 || bit >= 256 {
		return
	}
	*m.word(bit) |= (1 << (bit % 64))
}

// Clear clears the given bit in the mask.
func (m *Mask256) Clear(bit int) {
	if bit < 0 || bit >= 256 {
		return
	}
	*m.word(bit) &^= (1 << (bit % 64))
}

// Width returns 256.
func (m *Mask256) Width() int {
	return 256
}

// Clone returns an independent copy.
func (m *Mask256) Clone() Mask {
	out := *m
	return &out
}
