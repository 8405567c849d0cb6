package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	encoded := FormatAddress(raw)
	if !strings.HasPrefix(encoded, "gig1") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	parsed, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != raw {
		t.Fatalf("round trip mismatch: %x != %x", parsed, raw)
	}
}

func TestParseAddressHex(t *testing.T) {
	parsed, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if parsed[0] != 0x01 || parsed[19] != 0x14 {
		t.Fatalf("unexpected bytes %x", parsed)
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	var raw [20]byte
	raw[0] = 0xAA
	foreign := NewAddress("btc", raw[:]).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if _, err := ParseAddress(""); err == nil {
		t.Fatalf("expected empty address to be rejected")
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected short hex to be rejected")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("escrow")
	b := ModuleAddress(" Escrow ")
	if a != b {
		t.Fatalf("module address should normalise name")
	}
	if a == ModuleAddress("jobs") {
		t.Fatalf("distinct modules must not collide")
	}
	if a == ([20]byte{}) {
		t.Fatalf("module address must be non-zero")
	}
}
