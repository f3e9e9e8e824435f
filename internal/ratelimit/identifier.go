package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

const credentialPrefixLen = 8

// ClientIdentifier derives the rate limit key for a request. The first match
// wins:
//  1. a Bearer token in the Authorization header
//  2. the "key" query parameter
//  3. the left-most address in X-Forwarded-For
//  4. the peer address, or "unknown" when there is none
//
// Credentials are never used verbatim; only their first eight characters are
// kept.
func ClientIdentifier(r *http.Request) string {
	const bearer = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearer) {
		return "api_key:" + truncate(auth[len(bearer):], credentialPrefixLen) + "..."
	}

	if key := r.URL.Query().Get("key"); key != "" {
		return "api_key:" + truncate(key, credentialPrefixLen) + "..."
	}

	return "ip:" + ClientIP(r)
}

// ClientIP returns the left-most X-Forwarded-For address, falling back to
// the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	return peerAddress(r)
}

func peerAddress(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port
		return r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
