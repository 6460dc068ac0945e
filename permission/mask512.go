package permission

type Mask512 struct {
	A uint64
	B uint64
	C uint64
	D uint64
	E uint64
	F uint64
	G uint64
	H uint64
}

func (m *Mask512) word(bit int) *uint64 {
	switch bit / 64 {
	case 0:
		return &m.A
	case 1:
		return &m.B
	case 2:
		return &m.C
	case 3:
		return &m.D
	case 4:
		return &m.E
	case 5:
		return &m.F
	case 6:
		return &m.G
	default:
		return &m.H
	}
}

func (m *Mask512) Has(bit int) bool {
	if bit < 0 || bit >= 512 {
		return false
	}
	return (*m.word(bit) & (1 << (bit % 64))) != 0
}

func (m *Mask512) Set(bit int) {
	if bit < 0 || bit >= 512 {
		return
	}
	*m.word(bit) |= (1 << (bit % 64))
}

func (m *Mask512) Clear(bit int) {
	if bit < 0 || bit >= 512 {
		return
	}
	*m.word(bit) &^= (1 << (bit % 64))
}

func (m *Mask512) Width() int {
	return 512
}

func (m *Mask512) Clone() Mask {
	out := *m
	return &out
}
