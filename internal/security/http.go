package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// ClientConfig holds configuration for the HTTP clients that talk to echo
// servers and to the server-list host.
type ClientConfig struct {
	Timeout time.Duration
	// InsecureSkipVerify disables certificate and hostname verification.
	// Echo servers on the curated list are allowed to use self-signed or
	// mismatched certificates, so this is on for fetches by default.
	InsecureSkipVerify bool
	MaxResponseSize    int64 // Maximum response body size in bytes
	MinTLSVersion      uint16
	// DisableKeepAlives makes every request use exactly one fresh connection
	// that is torn down when the body is closed.
	DisableKeepAlives bool
}

// EchoClientConfig returns the configuration used to query echo servers.
func EchoClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            4 * time.Second,
		InsecureSkipVerify: true,
		MaxResponseSize:    1 * 1024 * 1024, // 1MB
		MinTLSVersion:      tls.VersionTLS10,
		DisableKeepAlives:  true,
	}
}

// StrictClientConfig returns a configuration with certificate verification
// enabled. Used for the server-list download.
func StrictClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            30 * time.Second,
		InsecureSkipVerify: false,
		MaxResponseSize:    4 * 1024 * 1024, // 4MB
		MinTLSVersion:      tls.VersionTLS12,
	}
}

// NewHTTPClient creates an HTTP client for the given configuration. Each
// client carries its own cookie jar since some echo servers answer only
// after setting a session cookie.
func NewHTTPClient(config ClientConfig) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: config.Timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: config.InsecureSkipVerify,
				MinVersion:         config.MinTLSVersion,
			},
			DisableKeepAlives:     config.DisableKeepAlives,
			TLSHandshakeTimeout:   config.Timeout,
			ResponseHeaderTimeout: config.Timeout,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// LimitedReadAll reads response body with size limit and closes it.
func LimitedReadAll(body io.ReadCloser, maxSize int64) ([]byte, error) {
	defer body.Close()
	limitedReader := io.LimitReader(body, maxSize)
	return io.ReadAll(limitedReader)
}
