package blocklist

import (
	"bufio"
	"context"
	"io"
	"strings"

	"shrike/internal/ipfilter"
)

// ParseP2P reads a PeerGuardian text stream, one rule per line:
//
//	<label>:<startIP>-<endIP>
//
// The label may itself contain colons; only the final colon-delimited
// segment is the range. Malformed lines are skipped with a diagnostic.
func ParseP2P(ctx context.Context, r io.Reader, filter *ipfilter.Filter, diag DiagnosticFunc) (int, error) {
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

		parts := strings.Split(text, ":")
		if len(parts) < 2 {
			emitDiagnostic(diag, line, "missing label separator", text)
			continue
		}

		start, end, ok := parseRangePair(parts[len(parts)-1], line, text, diag)
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
