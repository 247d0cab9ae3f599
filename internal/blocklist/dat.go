package blocklist

import (
	"bufio"
	"context"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"shrike/internal/ipaddr"
	"shrike/internal/ipfilter"
)

// Access values above this threshold mark an eMule DAT entry as
// permissive; such entries are discarded instead of stored as rules.
const maxBlockedAccess = 127

// ParseDAT reads an eMule ipfilter.dat stream, one rule per line:
//
//	<startIP>-<endIP>[,<access>][,<description>]
//
// Lines starting with '#' or "//" are comments. Malformed lines are
// skipped with a diagnostic; the parse never aborts on them. The
// returned count is the number of rules inserted into filter.
func ParseDAT(ctx context.Context, r io.Reader, filter *ipfilter.Filter, diag DiagnosticFunc) (int, error) {
	ruleCount := 0
	line := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	for scanner.Scan() {
		if err := cancelled(ctx); err != nil {
			return ruleCount, err
		}

		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}

		parts := strings.Split(text, ",")
		if len(parts) == 0 {
			continue
		}

		if len(parts) > 1 {
			access, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil || access > maxBlockedAccess {
				// Permissive or unreadable access value: the
				// entry is not a block rule.
				continue
			}
		}

		start, end, ok := parseRangePair(parts[0], line, text, diag)
		if !ok {
			continue
		}
		if insertRule(filter, start, end, line, text, diag) {
			ruleCount++
		}
	}

	if err := scanner.Err(); err != nil {
		return ruleCount, err
	}
	return ruleCount, nil
}

// parseRangePair splits "<startIP>-<endIP>" and parses both endpoints,
// requiring a matching address family.
func parseRangePair(field string, line int, text string, diag DiagnosticFunc) (start, end netip.Addr, ok bool) {
	ips := strings.Split(field, "-")
	if len(ips) != 2 {
		emitDiagnostic(diag, line, "range is not two dash-separated addresses", text)
		return start, end, false
	}

	startAddr, okStart := ipaddr.Parse(ips[0])
	if !okStart {
		emitDiagnostic(diag, line, "start address is invalid", text)
		return start, end, false
	}
	endAddr, okEnd := ipaddr.Parse(ips[1])
	if !okEnd {
		emitDiagnostic(diag, line, "end address is invalid", text)
		return start, end, false
	}

	if !ipaddr.SameFamily(startAddr, endAddr) {
		emitDiagnostic(diag, line, "addresses belong to different families", text)
		return start, end, false
	}

	return startAddr, endAddr, true
}
