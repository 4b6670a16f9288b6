package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/rs/zerolog/log"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/fsutil"
	"github.com/R167/ipwatch/internal/output"
	"github.com/R167/ipwatch/internal/security"
)

const (
	DefaultListURL   = "https://raw.githubusercontent.com/begleysm/ipwatch/master/servers.json"
	DefaultCachePath = "serverCache.json"

	displayLayout = "2006-01-02T15:04:05"
	maxListSize   = 4 * 1024 * 1024
)

// ErrMalformedServerList is returned when the downloaded server list is not a
// JSON array of strings. It is fatal for the run.
var ErrMalformedServerList = errors.New("malformed server list")

// Pool is a set of echo server URLs with the time it must be refreshed by.
type Pool struct {
	Servers       []string
	Expiry        time.Time
	ExpiryDisplay string
	// FromCache is true when the pool was served from the cache file.
	FromCache bool
}

// Empty reports whether there is no server to query.
func (p *Pool) Empty() bool {
	return p == nil || len(p.Servers) == 0
}

type cacheFile struct {
	Expiry        float64  `json:"expiry"`
	ExpiryDisplay string   `json:"expiryDisplay"`
	Servers       []string `json:"servers"`
}

type Config struct {
	ListURL   string
	CachePath string
	// ErrorPath receives the raw body of an unparseable download. Defaults to
	// the list's base filename in the cache directory.
	ErrorPath string
	TTL       time.Duration
	Client    *http.Client
	Now       func() time.Time
}

type Catalog struct {
	cfg Config
	out output.Output
}

func New(cfg Config, out output.Output) *Catalog {
	if cfg.ListURL == "" {
		cfg.ListURL = DefaultListURL
	}
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath
	}
	if cfg.ErrorPath == "" {
		cfg.ErrorPath = errorPathFor(cfg.ListURL, cfg.CachePath)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = common.ServerListTTL
	}
	if cfg.Client == nil {
		cfg.Client = security.NewHTTPClient(security.StrictClientConfig())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if out == nil {
		out = output.NewNoOpOutput()
	}
	return &Catalog{cfg: cfg, out: out}
}

func errorPathFor(listURL, cachePath string) string {
	name := "servers.json"
	if u, err := url.Parse(listURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	return filepath.Join(filepath.Dir(cachePath), name)
}

func (c *Catalog) CachePath() string { return c.cfg.CachePath }
func (c *Catalog) ErrorPath() string { return c.cfg.ErrorPath }

// Servers returns the cached pool when it is still valid and otherwise
// downloads a fresh one.
func (c *Catalog) Servers(ctx context.Context) (*Pool, error) {
	c.removeStaleErrorFile()

	if pool, ok := c.loadCache(); ok {
		log.Debug().Int("servers", len(pool.Servers)).Str("expiry", pool.ExpiryDisplay).Msg("using cached server list")
		return pool, nil
	}
	return c.refresh(ctx)
}

func (c *Catalog) removeStaleErrorFile() {
	err := os.Remove(c.cfg.ErrorPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", c.cfg.ErrorPath).Msg("could not remove old server list dump")
	}
}

// loadCache reads the cache file. Any structural problem is a cache miss.
func (c *Catalog) loadCache() (*Pool, bool) {
	data, err := os.ReadFile(c.cfg.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", c.cfg.CachePath).Msg("server cache unreadable")
		}
		return nil, false
	}

	pool, err := parseCache(data)
	if err != nil {
		log.Info().Err(err).Str("path", c.cfg.CachePath).Msg("server cache rejected")
		return nil, false
	}
	if pool.Expiry.Before(c.cfg.Now()) {
		log.Info().Str("expiry", pool.ExpiryDisplay).Msg("server cache expired")
		return nil, false
	}
	pool.FromCache = true
	return pool, true
}

func parseCache(data []byte) (*Pool, error) {
	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("not a json object: %w", err)
	}
	expiry, err := obj.GetFloat64("expiry")
	if err != nil {
		return nil, fmt.Errorf("expiry: %w", err)
	}
	display, err := obj.GetString("expiryDisplay")
	if err != nil {
		return nil, fmt.Errorf("expiryDisplay: %w", err)
	}
	servers, err := obj.GetStringArray("servers")
	if err != nil {
		return nil, fmt.Errorf("servers: %w", err)
	}
	if len(servers) == 0 {
		return nil, errors.New("servers: empty list")
	}
	return &Pool{
		Servers:       servers,
		Expiry:        fromEpoch(expiry),
		ExpiryDisplay: display,
	}, nil
}

// refresh downloads the list. A body that fails to parse and cancellation
// are errors; any other unsuccessful download leaves the pool empty.
func (c *Catalog) refresh(ctx context.Context) (*Pool, error) {
	expiry := c.cfg.Now().Add(c.cfg.TTL)
	pool := &Pool{
		Servers:       []string{},
		Expiry:        expiry,
		ExpiryDisplay: expiry.Format(displayLayout),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ListURL, nil)
	if err != nil {
		c.out.Error("Error receiving data: %v", err)
		return pool, nil
	}
	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.out.Error("Error receiving data: %v", err)
		log.Warn().Err(err).Str("url", c.cfg.ListURL).Msg("server list download failed")
		return pool, nil
	}
	body, err := security.LimitedReadAll(resp.Body, maxListSize)
	if resp.StatusCode != http.StatusOK {
		c.out.Error("Error receiving data %d", resp.StatusCode)
		log.Warn().Int("status", resp.StatusCode).Str("url", c.cfg.ListURL).Msg("server list download failed")
		return pool, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.out.Error("Error receiving data: %v", err)
		return pool, nil
	}

	servers, err := parseServerList(body)
	if err != nil {
		if werr := os.WriteFile(c.cfg.ErrorPath, body, 0o644); werr != nil {
			log.Error().Err(werr).Str("path", c.cfg.ErrorPath).Msg("could not save unparseable server list")
		}
		return nil, fmt.Errorf("%w from %s (raw body saved to %s): %v", ErrMalformedServerList, c.cfg.ListURL, c.cfg.ErrorPath, err)
	}
	pool.Servers = servers

	if err := c.writeCache(pool); err != nil {
		log.Error().Err(err).Str("path", c.cfg.CachePath).Msg("could not write server cache")
	}
	return pool, nil
}

func parseServerList(body []byte) ([]string, error) {
	value, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, err
	}
	items, err := value.Array()
	if err != nil {
		return nil, err
	}
	servers := make([]string, 0, len(items))
	for i, item := range items {
		s, err := item.String()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func (c *Catalog) writeCache(pool *Pool) error {
	data, err := json.MarshalIndent(cacheFile{
		Expiry:        toEpoch(pool.Expiry),
		ExpiryDisplay: pool.ExpiryDisplay,
		Servers:       pool.Servers,
	}, "", "    ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(c.cfg.CachePath, data, 0o644)
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
