package common

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	FetchTimeout    = 4 * time.Second
	DefaultTryCount = 7
	ServerListTTL   = 90 * 24 * time.Hour
)

var debugMode atomic.Bool

// SetDebugMode toggles debug output for every output sink.
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
}

func IsDebugMode() bool {
	return debugMode.Load()
}

// AddressRecord is one observation of the external address together with the
// echo server that reported it. An empty Server means the address was not
// obtained from any server.
type AddressRecord struct {
	IP     string `json:"ip"`
	Server string `json:"server,omitempty"`
}

func (r AddressRecord) String() string {
	return fmt.Sprintf("%s (via %s)", r.IP, r.ServerLabel())
}

// ServerLabel returns the server, or "None" when there is no source.
func (r AddressRecord) ServerLabel() string {
	if r.Server == "" {
		return "None"
	}
	return r.Server
}

// Blacklist is a set of addresses that must never be accepted as the
// external address (e.g. a captive portal or a transparent proxy).
type Blacklist map[string]struct{}

func NewBlacklist(ips ...string) Blacklist {
	b := make(Blacklist, len(ips))
	for _, ip := range ips {
		b[ip] = struct{}{}
	}
	return b
}

func (b Blacklist) Contains(ip string) bool {
	_, ok := b[ip]
	return ok
}

func (b Blacklist) Len() int {
	return len(b)
}

// NoStateSentinel is the address reported when no state file exists.
func NoStateSentinel(path string) string {
	return fmt.Sprintf("File '%s' not found", path)
}

// UnreadableStateSentinel is the address reported when the state file exists
// but cannot be read.
func UnreadableStateSentinel(path string) string {
	return fmt.Sprintf("File '%s' unreadable", path)
}

// MalformedSentinel wraps a persisted value that is not a valid address so it
// can never compare equal to a freshly resolved one.
func MalformedSentinel(raw string) string {
	return fmt.Sprintf("malformed ('%s')", raw)
}
