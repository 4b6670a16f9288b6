package security

import (
	"fmt"
	"net/netip"
)

// IsValidIP reports whether s is a textual IPv4 or IPv6 address. Zoned IPv6
// addresses ("fe80::1%eth0") and IPv4 octets with leading zeros are rejected.
func IsValidIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Zone() == ""
}

// ValidateBlacklist checks that every blacklist entry is a valid address.
func ValidateBlacklist(entries []string) error {
	for _, entry := range entries {
		if !IsValidIP(entry) {
			return fmt.Errorf("invalid ip_blacklist entry '%s'", entry)
		}
	}
	return nil
}

// ValidateTryCount ensures the attempt budget is a positive integer.
func ValidateTryCount(n int) error {
	if n <= 0 {
		return fmt.Errorf("try_count must be a positive integer, got: %d", n)
	}
	return nil
}
