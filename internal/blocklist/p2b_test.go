package blocklist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"shrike/internal/ipfilter"
)

func p2bHeader(version byte) []byte {
	return append(append([]byte{}, p2bMagic...), version)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func TestParseP2BVersion1(t *testing.T) {
	buf := p2bHeader(1)
	buf = append(buf, 'x', 0)
	buf = appendUint32(buf, 0x01020304)
	buf = appendUint32(buf, 0x01020310)

	filter := ipfilter.New()
	count, err := ParseP2B(context.Background(), bytes.NewReader(buf), filter, nil)
	if err != nil {
		t.Fatalf("ParseP2B returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	for _, ip := range []string{"1.2.3.4", "1.2.3.10", "1.2.3.16"} {
		if !filter.Contains(netip.MustParseAddr(ip)) {
			t.Errorf("Contains(%s) = false, want true", ip)
		}
	}
	if filter.Contains(netip.MustParseAddr("1.2.3.17")) {
		t.Error("Contains(1.2.3.17) = true, want false")
	}
}

func TestParseP2BVersion2MultipleRecords(t *testing.T) {
	buf := p2bHeader(2)
	buf = append(buf, []byte("first\x00")...)
	buf = appendUint32(buf, 0x0A000000) // 10.0.0.0
	buf = appendUint32(buf, 0x0A0000FF) // 10.0.0.255
	buf = append(buf, []byte("second\x00")...)
	buf = appendUint32(buf, 0xC0A80000) // 192.168.0.0
	buf = appendUint32(buf, 0xC0A800FF) // 192.168.0.255

	filter := ipfilter.New()
	count, err := ParseP2B(context.Background(), bytes.NewReader(buf), filter, nil)
	if err != nil {
		t.Fatalf("ParseP2B returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if !filter.Contains(netip.MustParseAddr("10.0.0.42")) || !filter.Contains(netip.MustParseAddr("192.168.0.42")) {
		t.Error("filter missing an inserted range")
	}
}

func TestParseP2BVersion3(t *testing.T) {
	buf := p2bHeader(3)
	buf = appendUint32(buf, 2) // name count
	buf = append(buf, []byte("alpha\x00beta\x00")...)
	buf = appendUint32(buf, 2) // range count
	buf = appendUint32(buf, 0) // name index, ignored
	buf = appendUint32(buf, 0x01000000)
	buf = appendUint32(buf, 0x010000FF)
	buf = appendUint32(buf, 1)
	buf = appendUint32(buf, 0x02000000)
	buf = appendUint32(buf, 0x020000FF)

	filter := ipfilter.New()
	count, err := ParseP2B(context.Background(), bytes.NewReader(buf), filter, nil)
	if err != nil {
		t.Fatalf("ParseP2B returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if !filter.Contains(netip.MustParseAddr("1.0.0.128")) || !filter.Contains(netip.MustParseAddr("2.0.0.128")) {
		t.Error("filter missing an inserted range")
	}
}

func TestParseP2BEmptyBody(t *testing.T) {
	filter := ipfilter.New()
	count, err := ParseP2B(context.Background(), bytes.NewReader(p2bHeader(1)), filter, nil)
	if err != nil {
		t.Fatalf("ParseP2B returned error for empty body: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestParseP2BFatalErrors(t *testing.T) {
	truncatedRecord := p2bHeader(1)
	truncatedRecord = append(truncatedRecord, 'x', 0)
	truncatedRecord = appendUint32(truncatedRecord, 0x01020304)
	truncatedRecord = append(truncatedRecord, 0x01) // half an end address

	truncatedName := p2bHeader(2)
	truncatedName = append(truncatedName, []byte("unterminated")...)

	v3ShortNameTable := p2bHeader(3)
	v3ShortNameTable = appendUint32(v3ShortNameTable, 5)
	v3ShortNameTable = append(v3ShortNameTable, []byte("only\x00")...)

	v3ShortRecords := p2bHeader(3)
	v3ShortRecords = appendUint32(v3ShortRecords, 0)
	v3ShortRecords = appendUint32(v3ShortRecords, 2)
	v3ShortRecords = appendUint32(v3ShortRecords, 0)
	v3ShortRecords = appendUint32(v3ShortRecords, 0x01000000)
	v3ShortRecords = appendUint32(v3ShortRecords, 0x010000FF)
	// second record missing entirely

	cases := []struct {
		name  string
		input []byte
	}{
		{"empty stream", nil},
		{"short magic", []byte("\xFF\xFF\xFFP2B")},
		{"wrong magic", []byte("\x00\x00\x00\x00P2B\x01")},
		{"missing version byte", p2bMagic},
		{"unsupported version", p2bHeader(4)},
		{"truncated record", truncatedRecord},
		{"truncated name", truncatedName},
		{"v3 short name table", v3ShortNameTable},
		{"v3 missing name count", p2bHeader(3)},
		{"v3 short records", v3ShortRecords},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filter := ipfilter.New()
			_, err := ParseP2B(context.Background(), bytes.NewReader(tc.input), filter, nil)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("ParseP2B error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestParseP2BCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := p2bHeader(1)
	buf = append(buf, 'x', 0)
	buf = appendUint32(buf, 0x01020304)
	buf = appendUint32(buf, 0x01020310)

	filter := ipfilter.New()
	_, err := ParseP2B(ctx, bytes.NewReader(buf), filter, nil)
	if err != context.Canceled {
		t.Fatalf("ParseP2B with cancelled context returned %v, want context.Canceled", err)
	}
}
