package geo

import (
	"net"
	"net/netip"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
)

// Optional GeoLite2 country annotation for checked addresses. When no
// database is configured every lookup returns the empty string.
var (
	mu     sync.RWMutex
	reader *geoip2.Reader
)

// Initialize opens the GeoLite2 country database at path. An empty path
// disables geo annotation without error.
func Initialize(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if reader != nil {
		_ = reader.Close()
		reader = nil
	}

	if path == "" {
		log.Debug("Geo lookups disabled: no database configured")
		return nil
	}

	r, err := geoip2.Open(path)
	if err != nil {
		return err
	}
	reader = r
	log.Info("Geo database loaded", "path", path)
	return nil
}

// Close releases the database reader.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if reader != nil {
		_ = reader.Close()
		reader = nil
	}
}

// Enabled reports whether a database is currently open.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return reader != nil
}

// CountryCode returns the ISO country code for addr, or "" when geo
// lookups are disabled or the address is unknown.
func CountryCode(addr netip.Addr) string {
	mu.RLock()
	defer mu.RUnlock()

	if reader == nil || !addr.IsValid() {
		return ""
	}

	record, err := reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
