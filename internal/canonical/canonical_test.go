package canonical

import "testing"

func TestCanonicalizeBasics(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare host gets https", "example.com", "https://example.com/"},
		{"strips www", "https://www.example.com", "https://example.com/"},
		{"lower-cases host", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"elides default https port", "https://example.com:443/", "https://example.com/"},
		{"elides default http port", "http://example.com:80/", "http://example.com/"},
		{"keeps non-default port", "http://example.com:8080/", "http://example.com:8080/"},
		{"removes fragment", "https://example.com/page#section", "https://example.com/page"},
		{"index.html collapses to directory", "https://example.com/blog/index.html", "https://example.com/blog"},
		{"default.asp collapses to directory", "https://example.com/index/default.asp", "https://example.com/index"},
		{"trailing slash removed", "https://example.com/page/", "https://example.com/page"},
		{"root keeps single slash", "https://example.com", "https://example.com/"},
		{"tracking params stripped", "https://example.com/p?utm_source=x&id=1", "https://example.com/p?id=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			if err != nil {
				t.Fatalf("Canonicalize(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeRejectsNonHTTP(t *testing.T) {
	_, err := Canonicalize("ftp://example.com/file")
	if err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.example.com/blog/index.html?utm_source=a&id=2#frag",
		"HTTP://Example.COM:80/a/b/",
		"example.com",
	}

	for _, in := range inputs {
		first, err := Canonicalize(in)
		if err != nil {
			t.Fatalf("Canonicalize(%q) error: %v", in, err)
		}
		second, err := Canonicalize(first)
		if err != nil {
			t.Fatalf("Canonicalize(%q) error: %v", first, err)
		}
		if first != second {
			t.Errorf("not idempotent: Canonicalize(%q)=%q, Canonicalize(that)=%q", in, first, second)
		}
	}
}

func TestSiteName(t *testing.T) {
	tests := []struct{ host, want string }{
		{"www.a.example.co.uk", "a.example"},
		{"www.example.com", "example"},
		{"cdn.foo.com", "cdn"},
		{"example.co", "example"},
	}

	for _, tt := range tests {
		if got := SiteName(tt.host); got != tt.want {
			t.Errorf("SiteName(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestSameScheme(t *testing.T) {
	if !SameScheme("https://example.com", "https://www.example.com/page") {
		t.Error("expected same scheme to match")
	}
	if SameScheme("https://example.com", "http://example.com") {
		t.Error("expected differing scheme to not match")
	}
}

func TestPathDepth(t *testing.T) {
	if got := PathDepth("https://example.com/a/b/c"); got != 3 {
		t.Errorf("PathDepth = %d, want 3", got)
	}
}
