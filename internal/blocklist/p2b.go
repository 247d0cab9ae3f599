package blocklist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"

	"shrike/internal/ipfilter"
)

// p2bMagic precedes every PeerGuardian binary file, followed by a
// single version byte.
var p2bMagic = []byte("\xFF\xFF\xFF\xFFP2B")

// ParseP2B reads a PeerGuardian binary stream. Versions 1 and 2 carry a
// sequence of null-terminated names each followed by a big-endian
// start/end IPv4 pair; version 3 carries a counted name table followed
// by counted {nameIndex, start, end} records. A bad header or any short
// read is fatal for the whole file: a binary stream cannot resynchronize
// after a corrupt field, so failure is all-or-nothing.
func ParseP2B(ctx context.Context, r io.Reader, filter *ipfilter.Filter, diag DiagnosticFunc) (int, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(p2bMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return 0, fmt.Errorf("%w: missing header", ErrInvalidFormat)
	}
	if !bytes.Equal(header, p2bMagic) {
		return 0, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}
	version, err := br.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: missing version byte", ErrInvalidFormat)
	}

	switch version {
	case 1, 2:
		return parseP2BNamedRecords(ctx, br, filter, diag)
	case 3:
		return parseP2BIndexedRecords(ctx, br, filter, diag)
	default:
		return 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, version)
	}
}

func parseP2BNamedRecords(ctx context.Context, br *bufio.Reader, filter *ipfilter.Filter, diag DiagnosticFunc) (int, error) {
	ruleCount := 0
	record := 0

	for {
		if err := cancelled(ctx); err != nil {
			return ruleCount, err
		}

		consumed, err := skipName(br)
		if errors.Is(err, io.EOF) {
			if consumed == 0 {
				// Clean end of stream.
				return ruleCount, nil
			}
			return ruleCount, fmt.Errorf("%w: truncated record name", ErrInvalidFormat)
		}
		if err != nil {
			return ruleCount, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}

		record++
		start, end, err := readAddrPair(br)
		if err != nil {
			return ruleCount, fmt.Errorf("%w: truncated record %d", ErrInvalidFormat, record)
		}
		if insertRule(filter, start, end, record, "", diag) {
			ruleCount++
		}
	}
}

func parseP2BIndexedRecords(ctx context.Context, br *bufio.Reader, filter *ipfilter.Filter, diag DiagnosticFunc) (int, error) {
	nameCount, err := readUint32(br)
	if err != nil {
		return 0, fmt.Errorf("%w: missing name count", ErrInvalidFormat)
	}

	for i := uint32(0); i < nameCount; i++ {
		if err := cancelled(ctx); err != nil {
			return 0, err
		}
		// Names are consumed only to stay aligned with the stream.
		if _, err := skipName(br); err != nil {
			return 0, fmt.Errorf("%w: truncated name table", ErrInvalidFormat)
		}
	}

	rangeCount, err := readUint32(br)
	if err != nil {
		return 0, fmt.Errorf("%w: missing range count", ErrInvalidFormat)
	}

	ruleCount := 0
	for i := uint32(0); i < rangeCount; i++ {
		if err := cancelled(ctx); err != nil {
			return ruleCount, err
		}

		// Leading name index is ignored.
		if _, err := readUint32(br); err != nil {
			return ruleCount, fmt.Errorf("%w: truncated record %d", ErrInvalidFormat, i+1)
		}
		start, end, err := readAddrPair(br)
		if err != nil {
			return ruleCount, fmt.Errorf("%w: truncated record %d", ErrInvalidFormat, i+1)
		}
		if insertRule(filter, start, end, int(i)+1, "", diag) {
			ruleCount++
		}
	}

	return ruleCount, nil
}

// skipName consumes bytes up to and including a null terminator,
// returning the number of bytes consumed. io.EOF is returned when the
// stream ends before the terminator.
func skipName(br *bufio.Reader) (int, error) {
	consumed := 0
	for {
		b, err := br.ReadByte()
		if err != nil {
			return consumed, err
		}
		consumed++
		if b == 0 {
			return consumed, nil
		}
	}
}

// readAddrPair reads two big-endian 32-bit addresses. Network byte
// order matches the in-memory IPv4 byte layout directly.
func readAddrPair(br *bufio.Reader) (start, end netip.Addr, err error) {
	var buf [8]byte
	if _, err = io.ReadFull(br, buf[:]); err != nil {
		return start, end, err
	}
	start = netip.AddrFrom4([4]byte(buf[:4]))
	end = netip.AddrFrom4([4]byte(buf[4:]))
	return start, end, nil
}

func readUint32(br *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
