// Package domain turns free-form user input into a validated, lowercase,
// ASCII host name suitable for handing to the analysis upstream.
package domain

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/use-agent/sitelens/models"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Sentinel causes wrapped by the *models.SiteError returned from Sanitize.
var (
	ErrEmpty        = errors.New("empty input")
	ErrInvalid      = errors.New("invalid host name")
	ErrIPLiteral    = errors.New("IP literal")
	ErrPublicSuffix = errors.New("public suffix")
	ErrUnknownTLD   = errors.New("unlisted suffix")
)

const (
	maxHostLen  = 253
	maxLabelLen = 63
)

var lookup = idna.Lookup

// Sanitize normalizes raw user input into a bare host name.
//
// Accepted forms include "Example.COM", " https://example.com/path?q ",
// "user@example.com:8443" and "bücher.de". The result is always lowercase
// punycode without scheme, port, path or trailing dot.
func Sanitize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", invalid("please enter a domain", ErrEmpty)
	}

	s = stripScheme(s)

	// userinfo, then path / query / fragment
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}

	if strings.HasPrefix(s, "[") {
		// Bracketed IPv6, with or without port.
		return "", invalid("enter a domain name, not an IP address", ErrIPLiteral)
	}

	host, err := stripPort(s)
	if err != nil {
		return "", err
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" {
		return "", invalid("please enter a domain", ErrEmpty)
	}
	if net.ParseIP(host) != nil {
		return "", invalid("enter a domain name, not an IP address", ErrIPLiteral)
	}

	ascii, err := lookup.ToASCII(host)
	if err != nil {
		return "", invalid("domain contains invalid characters", errors.Join(ErrInvalid, err))
	}

	if err := checkLabels(ascii); err != nil {
		return "", err
	}
	if err := checkSuffix(ascii); err != nil {
		return "", err
	}

	return ascii, nil
}

// Registrable returns the registrable domain (eTLD+1) for host, or host
// itself when it cannot be determined.
func Registrable(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// stripScheme removes "scheme://", the single-slash "https:/" form and a
// scheme-relative "//" prefix.
func stripScheme(s string) string {
	if i := strings.Index(s, "://"); i >= 0 && isScheme(s[:i]) {
		return s[i+3:]
	}
	for _, p := range []string{"https:/", "http:/"} {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return strings.TrimPrefix(s, "//")
}

func isScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func stripPort(s string) (string, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, nil
	}
	if strings.Count(s, ":") > 1 {
		// Unbracketed IPv6.
		return "", invalid("enter a domain name, not an IP address", ErrIPLiteral)
	}
	port := s[i+1:]
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", invalid("invalid port in domain", ErrInvalid)
	}
	return s[:i], nil
}

func checkLabels(host string) error {
	if len(host) > maxHostLen {
		return invalid("domain is too long", ErrInvalid)
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return invalid("domain must include a top-level domain, e.g. example.com", ErrInvalid)
	}
	for _, l := range labels {
		if l == "" || len(l) > maxLabelLen {
			return invalid("domain has an empty or oversized label", ErrInvalid)
		}
		if l[0] == '-' || l[len(l)-1] == '-' {
			return invalid("domain labels cannot start or end with a hyphen", ErrInvalid)
		}
		for i := 0; i < len(l); i++ {
			c := l[i]
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
				return invalid("domain contains invalid characters", ErrInvalid)
			}
		}
	}
	return nil
}

func checkSuffix(host string) error {
	suffix, icann := publicsuffix.PublicSuffix(host)
	if suffix == host {
		return invalid("domain is a public suffix, not a site", ErrPublicSuffix)
	}
	// publicsuffix falls back to the last label with icann=false for TLDs
	// it does not know. Private multi-label suffixes (github.io) are fine.
	if !icann && !strings.Contains(suffix, ".") {
		return invalid("unknown top-level domain "+strconv.Quote(suffix), ErrUnknownTLD)
	}
	return nil
}

func invalid(msg string, cause error) *models.SiteError {
	return models.NewSiteError(models.ErrCodeInvalidDomain, msg, cause)
}
