package permission

import (
	"errors"
	"testing"
)

func TestMaskSetClearAcrossWidths(t *testing.T) {
	for _, width := range []int{64, 128, 256, 512} {
		m, err := NewMask(width)
		if err != nil {
			t.Fatalf("new mask %d: %v", width, err)
		}
		if m.Width() != width {
			t.Fatalf("expected width %d, got %d", width, m.Width())
		}

		for _, bit := range []int{0, 1, 63, width - 1} {
			m.Set(bit)
			if !m.Has(bit) {
				t.Fatalf("width %d: bit %d not set", width, bit)
			}
		}
		if m.Has(2) {
			t.Fatalf("width %d: unexpected bit 2", width)
		}

		// out of range is ignored
		m.Set(width)
		m.Set(-1)
		if m.Has(width) || m.Has(-1) {
			t.Fatalf("width %d: out-of-range bit reported set", width)
		}

		m.Clear(63)
		if m.Has(63) {
			t.Fatalf("width %d: bit 63 not cleared", width)
		}
	}
}

func TestNewMaskRejectsInvalidWidth(t *testing.T) {
	if _, err := NewMask(32); !errors.Is(err, ErrInvalidWidth) {
		t.Fatalf("expected ErrInvalidWidth, got %v", err)
	}
}

func TestPermitsUsesIDMinusOne(t *testing.T) {
	m, err := MaskFromUint64(64, 0b1010)
	if err != nil {
		t.Fatalf("mask: %v", err)
	}

	want := map[uint32]bool{0: false, 1: false, 2: true, 3: false, 4: true, 5: false}
	for id, permitted := range want {
		if got := Permits(m, id); got != permitted {
			t.Fatalf("Permits(0b1010, %d) = %v, want %v", id, got, permitted)
		}
	}

	Grant(m, 1)
	Revoke(m, 2)
	if !Permits(m, 1) || Permits(m, 2) {
		t.Fatalf("grant/revoke mismatch: %s", FormatMask(m))
	}
}

func TestParseMaskFormats(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"0b1010", "0b1010"},
		{"0B1100", "0b1100"},
		{"0x0a", "0b1010"},
		{"10", "0b1010"},
		{"0b1_0000_0000", "0b100000000"},
		{"0", "0b0"},
	}
	for _, tt := range tests {
		m, err := ParseMask(64, tt.text)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.text, err)
		}
		if got := FormatMask(m); got != tt.want {
			t.Fatalf("parse %q = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestParseMaskRejectsOverflowAndGarbage(t *testing.T) {
	over := "0x1" + "0000000000000000" // bit 64
	if _, err := ParseMask(64, over); !errors.Is(err, ErrInvalidMask) {
		t.Fatalf("expected overflow rejection, got %v", err)
	}
	m, err := ParseMask(128, over)
	if err != nil {
		t.Fatalf("128-bit parse: %v", err)
	}
	if !m.Has(64) {
		t.Fatal("expected bit 64 set on 128-bit mask")
	}

	for _, text := range []string{"", "0b", "0b102", "-1", "zz"} {
		if _, err := ParseMask(64, text); !errors.Is(err, ErrInvalidMask) {
			t.Fatalf("parse %q: expected ErrInvalidMask, got %v", text, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	for _, width := range []int{64, 128, 256, 512} {
		m, _ := NewMask(width)
		m.Set(3)
		cp := m.Clone()
		cp.Set(4)
		if m.Has(4) {
			t.Fatalf("width %d: clone shares storage", width)
		}
		if !cp.Has(3) {
			t.Fatalf("width %d: clone lost bit 3", width)
		}
	}
}

func TestMaskCodecPreservesBits(t *testing.T) {
	for _, width := range []int{64, 128, 256, 512} {
		m, _ := NewMask(width)
		m.Set(0)
		m.Set(width - 1)

		data, err := EncodeMask(m)
		if err != nil {
			t.Fatalf("encode %d: %v", width, err)
		}
		if len(data) != width/8 {
			t.Fatalf("expected %d bytes, got %d", width/8, len(data))
		}

		back, err := DecodeMask(data)
		if err != nil {
			t.Fatalf("decode %d: %v", width, err)
		}
		if back.Width() != width || !back.Has(0) || !back.Has(width-1) || back.Has(1) {
			t.Fatalf("width %d: decoded mask %s", width, FormatMask(back))
		}
	}
}
