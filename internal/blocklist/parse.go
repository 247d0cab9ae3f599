package blocklist

import (
	"context"
	"errors"
	"net/netip"

	"github.com/charmbracelet/log"

	"shrike/internal/ipfilter"
)

// ErrInvalidFormat marks a fatal format problem: a bad P2B header or
// version, or a short read inside the binary stream. Unlike per-line
// problems in the text formats it aborts the whole parse.
var ErrInvalidFormat = errors.New("blocklist: not a valid filter file")

// Diagnostic describes a single skipped record in a text-format file.
type Diagnostic struct {
	Line   int
	Reason string
	Text   string
}

// DiagnosticFunc receives one Diagnostic per skipped record. Parsing
// continues past every diagnosed record.
type DiagnosticFunc func(Diagnostic)

func emitDiagnostic(diag DiagnosticFunc, line int, reason, text string) {
	log.Debug("Skipping malformed filter entry", "line", line, "reason", reason)
	if diag != nil {
		diag(Diagnostic{Line: line, Reason: reason, Text: text})
	}
}

// insertRule adds a blocked range to the filter, downgrading insertion
// failures (inverted or mixed-family pairs) to per-record diagnostics.
func insertRule(filter *ipfilter.Filter, start, end netip.Addr, line int, text string, diag DiagnosticFunc) bool {
	if err := filter.Insert(start, end); err != nil {
		emitDiagnostic(diag, line, err.Error(), text)
		return false
	}
	return true
}

func cancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
