package safefetch

import (
	"errors"
	"testing"
)

func assertReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Reason != want {
		t.Errorf("reason = %s, want %s", verr.Reason, want)
	}
}

func TestValidatePublicHosts(t *testing.T) {
	urls := []string{
		"https://example.com/file.pdf",
		"https://cdn.stitchfolk.com/patterns/tote-bag.pdf?download=1",
		"http://files.example.org:8443/a/b/c",
		"https://8.8.8.8/resource",
		"https://abc123.supabase.co/storage/v1/object/public/files/pattern.pdf",
	}
	for _, u := range urls {
		if err := Validate(u, nil); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Reason
	}{
		{"unparseable", "http://[::1", ReasonInvalidFormat},
		{"no host", "https:///path/only", ReasonInvalidFormat},
		{"ftp scheme", "ftp://example.com/file.pdf", ReasonUnsupportedScheme},
		{"file scheme", "file:///etc/passwd", ReasonUnsupportedScheme},
		{"gopher scheme", "gopher://example.com/", ReasonUnsupportedScheme},
		{"localhost", "http://localhost/file.pdf", ReasonBlockedHost},
		{"localhost upper", "http://LOCALHOST:8080/file.pdf", ReasonBlockedHost},
		{"loopback v4", "http://127.0.0.1/files/pattern.pdf", ReasonBlockedHost},
		{"loopback v4 high", "http://127.8.4.2/file.pdf", ReasonBlockedHost},
		{"unspecified v4", "http://0.0.0.0/file.pdf", ReasonBlockedHost},
		{"loopback v6", "http://[::1]/file.pdf", ReasonBlockedHost},
		{"loopback v6 expanded", "http://[0:0:0:0:0:0:0:1]/file.pdf", ReasonBlockedHost},
		{"mapped loopback", "http://[::ffff:127.0.0.1]/file.pdf", ReasonBlockedHost},
		{"rfc1918 10", "https://10.1.2.3/file.pdf", ReasonPrivateAddress},
		{"rfc1918 172", "https://172.16.0.10/file.pdf", ReasonPrivateAddress},
		{"rfc1918 172 upper bound", "https://172.31.255.255/file.pdf", ReasonPrivateAddress},
		{"rfc1918 192", "https://192.168.1.1/file.pdf", ReasonPrivateAddress},
		{"link local", "https://169.254.169.254/latest/meta-data/", ReasonPrivateAddress},
		{"mapped rfc1918", "https://[::ffff:10.0.0.1]/file.pdf", ReasonPrivateAddress},
		{"mapped link local", "https://[::ffff:169.254.169.254]/file.pdf", ReasonPrivateAddress},
		{"unique local v6", "https://[fc00::1]/file.pdf", ReasonPrivateAddress},
		{"unique local v6 fd", "https://[fd12:3456::1]/file.pdf", ReasonPrivateAddress},
		{"link local v6", "https://[fe80::1]/file.pdf", ReasonPrivateAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.url, nil)
			if err == nil {
				t.Fatalf("Validate(%q) = nil, want %s", tt.url, tt.want)
			}
			assertReason(t, err, tt.want)
		})
	}
}

func TestValidateBlockedRegardlessOfAllowlist(t *testing.T) {
	// An allow-list entry must never override the address-space checks.
	allowed := []string{"127.0.0.1", "localhost", "*.supabase.co"}
	for _, u := range []string{
		"http://127.0.0.1/files/pattern.pdf",
		"http://localhost/files/pattern.pdf",
		"https://192.168.0.5/files/pattern.pdf",
	} {
		if err := Validate(u, allowed); err == nil {
			t.Errorf("Validate(%q, allowlist) = nil, want rejection", u)
		}
	}
}

func TestValidateAllowlist(t *testing.T) {
	allowed := []string{"*.supabase.co"}

	tests := []struct {
		name   string
		url    string
		wantOK bool
	}{
		{"subdomain matches wildcard", "https://abc123.supabase.co/storage/v1/object/public/f.pdf", true},
		{"nested subdomain matches", "https://a.b.supabase.co/f.pdf", true},
		{"base matches wildcard", "https://supabase.co/f.pdf", true},
		{"other host rejected", "https://evil.com/f.pdf", false},
		{"suffix trick rejected", "https://evilsupabase.co/f.pdf", false},
		{"embedded base rejected", "https://supabase.co.evil.com/f.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.url, allowed)
			if tt.wantOK && err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tt.url, err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatalf("Validate(%q) = nil, want rejection", tt.url)
				}
				assertReason(t, err, ReasonHostNotAllowlisted)
			}
		})
	}
}

func TestValidateExactAllowlistEntry(t *testing.T) {
	allowed := []string{"cdn.stitchfolk.com", "*.supabase.co"}

	if err := Validate("https://cdn.stitchfolk.com/f.pdf", allowed); err != nil {
		t.Errorf("exact entry should match: %v", err)
	}
	if err := Validate("https://sub.cdn.stitchfolk.com/f.pdf", allowed); err == nil {
		t.Error("exact entry must not match subdomains")
	}
}

func TestValidateEmptyAllowlistSkipsCheck(t *testing.T) {
	if err := Validate("https://anything.example.net/f.pdf", []string{}); err != nil {
		t.Errorf("empty allowlist should pass public hosts: %v", err)
	}
}

func TestHostAllowedCaseInsensitive(t *testing.T) {
	if !hostAllowed("abc.supabase.co", []string{" *.Supabase.CO "}) {
		t.Error("allowlist matching should be case-insensitive and trimmed")
	}
}
