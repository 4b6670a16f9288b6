package state

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/fsutil"
	"github.com/R167/ipwatch/internal/security"
)

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted record. It never fails: a missing or unreadable
// file yields a sentinel address that cannot equal a real one, and a stored
// value that is not an IP is wrapped as malformed.
func (s *Store) Load() common.AddressRecord {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return common.AddressRecord{IP: common.NoStateSentinel(s.path)}
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("cannot read saved address")
		return common.AddressRecord{IP: common.UnreadableStateSentinel(s.path)}
	}
	return Parse(string(data))
}

// Parse decodes the "ip,server" form. Everything after the first comma is the
// server, commas included.
func Parse(raw string) common.AddressRecord {
	ip, server, _ := strings.Cut(strings.TrimSpace(raw), ",")
	if !security.IsValidIP(ip) {
		ip = common.MalformedSentinel(ip)
	}
	return common.AddressRecord{IP: ip, Server: server}
}

// Save overwrites the state file with rec.
func (s *Store) Save(rec common.AddressRecord) error {
	return fsutil.WriteFileAtomic(s.path, []byte(Format(rec)), 0o644)
}

func Format(rec common.AddressRecord) string {
	return rec.IP + "," + rec.Server
}
