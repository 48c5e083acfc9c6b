package main

import (
	"testing"

	"github.com/cwsl/blesniffercore/internal/frame"
)

func TestParsePHY(t *testing.T) {
	cases := []struct {
		in   string
		want frame.PHY
	}{
		{"1M", frame.PHY1M},
		{"1m", frame.PHY1M},
		{"2M", frame.PHY2M},
		{"codeds8", frame.PHYCodedS8},
		{"codeds2", frame.PHYCodedS2},
	}
	for _, c := range cases {
		got, err := parsePHY(c.in)
		if err != nil {
			t.Errorf("parsePHY(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parsePHY(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParsePHYRejectsUnknown(t *testing.T) {
	if _, err := parsePHY("3M"); err == nil {
		t.Error("expected error for unrecognized PHY")
	}
}

func TestParseMAC(t *testing.T) {
	mac, err := parseMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("parseMAC error: %v", err)
	}
	want := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if mac != want {
		t.Errorf("parseMAC = %v, want %v", mac, want)
	}
}

func TestParseMACRejectsMalformed(t *testing.T) {
	cases := []string{"AA:BB:CC", "GG:BB:CC:DD:EE:FF", "AABBCCDDEEFF"}
	for _, c := range cases {
		if _, err := parseMAC(c); err == nil {
			t.Errorf("parseMAC(%q): expected error", c)
		}
	}
}

func TestParseIRK(t *testing.T) {
	irk, err := parseIRK("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatalf("parseIRK error: %v", err)
	}
	for i := 0; i < 16; i++ {
		if irk[i] != byte(i) {
			t.Errorf("irk[%d] = %#x, want %#x", i, irk[i], i)
		}
	}
}

func TestParseIRKRejectsWrongLength(t *testing.T) {
	if _, err := parseIRK("0001"); err == nil {
		t.Error("expected error for short IRK")
	}
}
