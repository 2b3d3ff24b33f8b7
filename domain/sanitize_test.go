package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/use-agent/sitelens/models"
)

func TestSanitize_Accepts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "example.com", "example.com"},
		{"uppercase and spaces", "  Example.COM \t", "example.com"},
		{"https scheme with path", "https://example.com/about?x=1#top", "example.com"},
		{"http scheme", "http://www.example.org", "www.example.org"},
		{"single slash scheme", "https:/example.com", "example.com"},
		{"scheme relative", "//cdn.example.net/a.png", "cdn.example.net"},
		{"port", "example.com:8443", "example.com"},
		{"userinfo", "user:pass@example.com", "example.com"},
		{"trailing dot", "example.com.", "example.com"},
		{"idn", "bücher.de", "xn--bcher-kva.de"},
		{"multi label suffix", "bbc.co.uk", "bbc.co.uk"},
		{"private suffix", "someone.github.io", "someone.github.io"},
		{"digits and hyphen", "a-1.example.com", "a-1.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if err != nil {
				t.Fatalf("Sanitize(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace", "   ", ErrEmpty},
		{"scheme only", "https://", ErrEmpty},
		{"ipv4", "192.168.1.1", ErrIPLiteral},
		{"ipv4 with port", "10.0.0.1:80", ErrIPLiteral},
		{"bracketed ipv6", "[::1]:8080", ErrIPLiteral},
		{"bare ipv6", "2001:db8::1", ErrIPLiteral},
		{"single label", "localhost", ErrInvalid},
		{"bad port", "example.com:http", ErrInvalid},
		{"leading hyphen", "-example.com", ErrInvalid},
		{"empty label", "example..com", ErrInvalid},
		{"underscore", "my_site.com", ErrInvalid},
		{"space inside", "exa mple.com", ErrInvalid},
		{"public suffix", "co.uk", ErrPublicSuffix},
		{"unknown tld", "example.notarealtld", ErrUnknownTLD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if err == nil {
				t.Fatalf("Sanitize(%q) = %q, want error", tt.in, got)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Sanitize(%q) error = %v, want %v", tt.in, err, tt.want)
			}
			var se *models.SiteError
			if !errors.As(err, &se) || se.Code != models.ErrCodeInvalidDomain {
				t.Errorf("Sanitize(%q) error is not an INVALID_DOMAIN SiteError: %v", tt.in, err)
			}
		})
	}
}

func TestSanitize_TooLong(t *testing.T) {
	label := "abcdefghij"
	host := ""
	for len(host) < 260 {
		host += label + "."
	}
	host += "com"

	if _, err := Sanitize(host); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for %d-char host, got %v", len(host), err)
	}
}

func TestRegistrable(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"www.example.com", "example.com"},
		{"news.bbc.co.uk", "bbc.co.uk"},
		{"example.com", "example.com"},
		{"com", "com"},
	}
	for _, tt := range tests {
		if got := Registrable(tt.in); got != tt.want {
			t.Errorf("Registrable(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_ErrorTextDoesNotRepeat(t *testing.T) {
	for _, in := range []string{"", "192.168.1.1", "[::1]", "localhost", "co.uk", "example.notarealtld"} {
		_, err := Sanitize(in)
		if err == nil {
			t.Fatalf("Sanitize(%q) succeeded", in)
		}
		var se *models.SiteError
		if !errors.As(err, &se) {
			t.Fatalf("Sanitize(%q) error %T is not a SiteError", in, err)
		}
		if se.Err != nil && strings.Contains(se.Message, se.Err.Error()) {
			t.Errorf("Sanitize(%q) error repeats itself: %q", in, err.Error())
		}
	}
	_, err := Sanitize("192.168.1.1")
	if want := "INVALID_DOMAIN: enter a domain name, not an IP address: IP literal"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
