package ipaddr

import (
	"net/netip"
	"strings"
)

// Parse interprets a textual IPv4 or IPv6 literal. eMule .DAT exporters
// zero-pad IPv4 octets (e.g. 001.009.106.186), which the standard parser
// rejects as ambiguous octal notation, so up to two leading zeroes are
// stripped from each octet before parsing. Hostnames, CIDR notation and
// port suffixes are not accepted.
func Parse(text string) (netip.Addr, bool) {
	text = strings.TrimSpace(text)

	octets := strings.Split(text, ".")
	if len(octets) == 4 {
		for i, octet := range octets {
			if len(octet) > 1 && octet[0] == '0' {
				if len(octet) > 2 && octet[1] == '0' {
					octet = octet[2:]
				} else {
					octet = octet[1:]
				}
				octets[i] = octet
			}
		}
		text = strings.Join(octets, ".")
	}

	addr, err := netip.ParseAddr(text)
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, false
	}

	// Treat 4-in-6 mapped addresses as plain IPv4 so family checks
	// and range comparisons stay consistent.
	return addr.Unmap(), true
}

// SameFamily reports whether both addresses are IPv4 or both are IPv6.
func SameFamily(a, b netip.Addr) bool {
	return a.Is4() == b.Is4()
}
