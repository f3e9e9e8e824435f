package models

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidProxy is returned for proxy strings in none of the accepted formats.
var ErrInvalidProxy = errors.New("invalid proxy format")

// Proxy is an outbound proxy in the pool. URL is always in normalized form.
type Proxy struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ProxyCheckResult is the outcome of a single connectivity probe.
type ProxyCheckResult struct {
	Proxy      string    `json:"proxy"`
	Available  bool      `json:"available"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	Cached     bool      `json:"cached"`
}

type ProxyCheckSummary struct {
	Total       int                `json:"total"`
	Available   int                `json:"available"`
	Unavailable int                `json:"unavailable"`
	Results     []ProxyCheckResult `json:"results"`
}

type AddProxiesRequest struct {
	Proxies []string `json:"proxies"`
}

func (r *AddProxiesRequest) Validate() error {
	if len(r.Proxies) == 0 {
		return errors.New("proxies cannot be empty")
	}
	return nil
}

type TestProxyRequest struct {
	ProxyURL string `json:"proxy_url"`
	UseCache bool   `json:"use_cache"`
}

func (r *TestProxyRequest) Validate() error {
	if strings.TrimSpace(r.ProxyURL) == "" {
		return errors.New("proxy_url is required")
	}
	return nil
}

// NormalizeProxy converts any accepted proxy notation into a proxy URL.
//
// Accepted inputs:
//   - IP:PORT:USER:PASS, becoming http://USER:PASS@IP:PORT
//   - IP:PORT or IP:PORT:: (no credentials), becoming http://IP:PORT
//   - an absolute http, https or socks5 URL with an explicit port
func NormalizeProxy(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidProxy)
	}

	if strings.Contains(s, "://") {
		return normalizeProxyURL(s)
	}

	parts := strings.Split(s, ":")
	var host, port, user, pass string
	switch len(parts) {
	case 2:
		host, port = parts[0], parts[1]
	case 4:
		host, port, user, pass = parts[0], parts[1], parts[2], parts[3]
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}

	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}
	if err := validatePort(port); err != nil {
		return "", err
	}

	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}
	if user != "" && pass != "" {
		u.User = url.UserPassword(user, pass)
	}
	return u.String(), nil
}

func normalizeProxyURL(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidProxy)
	}
	if err := validatePort(u.Port()); err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: port %q out of range", ErrInvalidProxy, port)
	}
	return nil
}

// RedactProxyURL hides the password of a proxy URL for logging.
func RedactProxyURL(proxyURL string) string {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return proxyURL
	}
	return u.Redacted()
}
