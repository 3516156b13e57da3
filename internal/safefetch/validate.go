// Package safefetch guards outbound HTTP fetches whose target URL derives
// from stored, seller-controllable data. Every fetch is validated against
// loopback/private address space and an optional host allow-list before any
// network I/O happens.
package safefetch

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// Reason is a machine-readable rejection code for URL validation.
type Reason string

const (
	ReasonInvalidFormat      Reason = "invalid_format"
	ReasonUnsupportedScheme  Reason = "unsupported_scheme"
	ReasonBlockedHost        Reason = "blocked_host"
	ReasonPrivateAddress     Reason = "private_address"
	ReasonHostNotAllowlisted Reason = "host_not_allowlisted"
)

// ValidationError reports why a URL was rejected before any fetch attempt.
type ValidationError struct {
	Reason Reason
	Host   string
}

func (e *ValidationError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("url rejected: %s", e.Reason)
	}
	return fmt.Sprintf("url rejected: %s (host %q)", e.Reason, e.Host)
}

// Literal hostname forms that always resolve to the local machine. These are
// rejected before any range math so that e.g. "localhost" never depends on
// resolver behavior.
var blockedHostLiterals = map[string]bool{
	"localhost":       true,
	"127.0.0.1":       true,
	"0.0.0.0":         true,
	"::1":             true,
	"::":              true,
	"0:0:0:0:0:0:0:1": true,
	"0:0:0:0:0:0:0:0": true,
}

// Validate checks rawURL against the SSRF rules, failing fast on the first
// violation:
//
//  1. must parse as a URL with a hostname
//  2. scheme must be http or https
//  3. hostname must not be a literal loopback form
//  4. an IP-literal hostname must not fall in loopback, private
//     (10/8, 172.16/12, 192.168/16, fc00::/7) or link-local
//     (169.254/16, fe80::/10) space; IPv4-mapped IPv6 is unmapped first
//  5. if allowedHosts is non-empty, the hostname must match one entry
//     (exact, or "*.base" wildcard matching base and its subdomains)
//
// An empty allowedHosts skips step 5: any public host passes.
func Validate(rawURL string, allowedHosts []string) error {
	return validate(rawURL, allowedHosts, false)
}

func validate(rawURL string, allowedHosts []string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Reason: ReasonInvalidFormat}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &ValidationError{Reason: ReasonUnsupportedScheme, Host: u.Hostname()}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return &ValidationError{Reason: ReasonInvalidFormat}
	}

	if !allowPrivate {
		if blockedHostLiterals[host] {
			return &ValidationError{Reason: ReasonBlockedHost, Host: host}
		}
		if addr, err := netip.ParseAddr(host); err == nil {
			addr = addr.Unmap()
			if addr.IsLoopback() || addr.IsUnspecified() {
				return &ValidationError{Reason: ReasonBlockedHost, Host: host}
			}
			if addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
				return &ValidationError{Reason: ReasonPrivateAddress, Host: host}
			}
		}
		// TODO: resolve non-literal hostnames and re-check the resolved IPs
		// to close the DNS-rebinding variant of this hole.
	}

	if len(allowedHosts) > 0 && !hostAllowed(host, allowedHosts) {
		return &ValidationError{Reason: ReasonHostNotAllowlisted, Host: host}
	}

	return nil
}

// hostAllowed reports whether host matches any allow-list entry. Entries are
// exact hostnames or wildcard-subdomain patterns: "*.example.com" matches
// "example.com" and any of its subdomains.
func hostAllowed(host string, allowedHosts []string) bool {
	for _, entry := range allowedHosts {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if base, ok := strings.CutPrefix(entry, "*."); ok {
			if host == base || strings.HasSuffix(host, "."+base) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}
