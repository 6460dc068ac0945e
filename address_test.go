package goClone

import (
	"errors"
	"testing"
)

func TestDeriveProxyAddressIsDeterministic(t *testing.T) {
	factory := Address{0xaa}

	a1 := deriveProxyAddress(factory, 1)
	a2 := deriveProxyAddress(factory, 2)
	if a1 == a2 {
		t.Fatal("expected distinct addresses for distinct nonces")
	}
	if a1 != deriveProxyAddress(factory, 1) {
		t.Fatal("expected derivation to be deterministic")
	}
	if a1 == deriveProxyAddress(Address{0xbb}, 1) {
		t.Fatal("expected different factories to derive different addresses")
	}
}

func TestNewFactoryAddressIsRandom(t *testing.T) {
	a, b := NewFactoryAddress(), NewFactoryAddress()
	if a.IsZero() || b.IsZero() || a == b {
		t.Fatalf("unexpected factory addresses %s %s", a, b)
	}
}

func TestParseAddress(t *testing.T) {
	want := deriveProxyAddress(Address{1}, 7)

	for _, text := range []string{want.String(), want.String()[2:], " " + want.String() + " "} {
		got, err := ParseAddress(text)
		if err != nil {
			t.Fatalf("parse %q: %v", text, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", text, got, want)
		}
	}

	for _, text := range []string{"", "0x12", want.String() + "00", "0x" + string(make([]byte, 40))} {
		if _, err := ParseAddress(text); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("parse %q: expected ErrInvalidAddress, got %v", text, err)
		}
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	a := NewFactoryAddress()
	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Address
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != a {
		t.Fatalf("expected %s, got %s", a, back)
	}
}
