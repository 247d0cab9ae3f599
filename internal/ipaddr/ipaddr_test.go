package ipaddr

import (
	"fmt"
	"net/netip"
	"testing"
)

func TestParseLeadingZeroOctets(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"001.009.106.186", "1.9.106.186"},
		{"01.02.03.04", "1.2.3.4"},
		{"009.000.010.001", "9.0.10.1"},
		{"192.168.000.001", "192.168.0.1"},
		{"0.0.0.0", "0.0.0.0"},
		{"255.255.255.255", "255.255.255.255"},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.input)
		if !ok {
			t.Errorf("Parse(%q) failed, want %s", tc.input, tc.want)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseZeroPaddingIsTransparent(t *testing.T) {
	// Any dotted quad with 0-2 extra zeroes per octet must parse to the
	// same address as the stripped form.
	base := [4]int{1, 9, 106, 186}
	want := netip.MustParseAddr("1.9.106.186")

	for pad := 0; pad <= 2; pad++ {
		padded := ""
		for i, octet := range base {
			if i > 0 {
				padded += "."
			}
			padded += fmt.Sprintf("%0*d", pad+len(fmt.Sprint(octet)), octet)
		}
		got, ok := Parse(padded)
		if !ok || got != want {
			t.Errorf("Parse(%q) = %v (ok=%v), want %v", padded, got, ok, want)
		}
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	got, ok := Parse("  10.0.0.1\t")
	if !ok || got.String() != "10.0.0.1" {
		t.Fatalf("Parse with surrounding whitespace = %v (ok=%v)", got, ok)
	}
}

func TestParseIPv6(t *testing.T) {
	got, ok := Parse("2001:db8::1")
	if !ok {
		t.Fatal("Parse rejected valid IPv6 literal")
	}
	if got.Is4() {
		t.Fatalf("Parse(2001:db8::1) classified as IPv4: %v", got)
	}
}

func TestParseUnmapsFourInSix(t *testing.T) {
	got, ok := Parse("::ffff:1.2.3.4")
	if !ok {
		t.Fatal("Parse rejected 4-in-6 literal")
	}
	if !got.Is4() {
		t.Fatalf("Parse(::ffff:1.2.3.4) = %v, want unmapped IPv4", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"example.com",
		"1.2.3",
		"1.2.3.4.5",
		"1.2.3.256",
		"1.2.3.4/24",
		"1.2.3.4:6881",
		"fe80::1%eth0",
		"0001.2.3.4", // three leading digits cannot be reduced
		"not an ip",
	}

	for _, input := range invalid {
		if got, ok := Parse(input); ok {
			t.Errorf("Parse(%q) = %v, want invalid", input, got)
		}
	}
}

func TestSameFamily(t *testing.T) {
	v4a := netip.MustParseAddr("1.2.3.4")
	v4b := netip.MustParseAddr("5.6.7.8")
	v6 := netip.MustParseAddr("2001:db8::1")

	if !SameFamily(v4a, v4b) {
		t.Error("SameFamily(v4, v4) = false")
	}
	if SameFamily(v4a, v6) {
		t.Error("SameFamily(v4, v6) = true")
	}
}
