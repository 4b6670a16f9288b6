package fetcher

import (
	"context"
	"net/http"
	"regexp"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"

	"github.com/R167/ipwatch/internal/security"
)

const (
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:57.0) Gecko/20100101 Firefox/57.0"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5"
)

const octet = `(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`

var ipv4Pattern = regexp.MustCompile(octet + `\.` + octet + `\.` + octet + `\.` + octet)

// Fetcher returns the address reported by one server, or "" on failure.
type Fetcher interface {
	Fetch(ctx context.Context, serverURL string) string
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
}

func New(config security.ClientConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:  security.NewHTTPClient(config),
		maxBody: config.MaxResponseSize,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, serverURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL, nil)
	if err != nil {
		log.Debug().Err(err).Str("server", serverURL).Msg("bad server url")
		return ""
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("server", serverURL).Msg("fetch failed")
		return ""
	}
	body, err := security.LimitedReadAll(resp.Body, f.maxBody)
	if err != nil {
		log.Debug().Err(err).Str("server", serverURL).Msg("reading body failed")
		return ""
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Int("status", resp.StatusCode).Str("server", serverURL).Msg("non-2xx response")
		return ""
	}

	return ExtractIPv4(decode(body))
}

// decode interprets body as UTF-8, falling back to Latin-1 which accepts any
// byte sequence.
func decode(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return ""
	}
	return string(text)
}

// ExtractIPv4 returns the first dotted-quad substring of text, or "".
func ExtractIPv4(text string) string {
	return ipv4Pattern.FindString(text)
}

