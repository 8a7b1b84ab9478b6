package hostenv

import (
	"testing"
)

func TestParseURL_Origin(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/a/b?c=d#e", "https://example.com"},
		{"https://Example.COM:443/", "https://example.com"},
		{"http://localhost:8080/assets/ship.png", "http://localhost:8080"},
		{"http://[::1]:3000/", "http://[::1]:3000"},
		{"ws://example.com:80/socket", "ws://example.com"},
		{"file:///tmp/index.html", "null"},
		{"data:text/plain,hello", "null"},
	}

	for _, tt := range tests {
		u, err := ParseURL(tt.raw)
		if err != nil {
			t.Fatalf("ParseURL(%q) failed: %v", tt.raw, err)
		}
		if got := u.Origin(); got != tt.want {
			t.Errorf("ParseURL(%q).Origin() = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseURL_Invalid(t *testing.T) {
	for _, raw := range []string{"", "/relative/path", "http:///missing-host", "://x"} {
		_, err := ParseURL(raw)
		if err == nil {
			t.Errorf("ParseURL(%q) should fail", raw)
			continue
		}
		if got := errorName(t, err); got != "TypeError" {
			t.Errorf("ParseURL(%q) error = %s, want TypeError", raw, got)
		}
	}
}

func TestURL_Get(t *testing.T) {
	u, err := ParseURL("https://example.com:8443/path/to?q=1#frag")
	if err != nil {
		t.Fatalf("ParseURL() failed: %v", err)
	}

	want := map[string]string{
		"href":     "https://example.com:8443/path/to?q=1#frag",
		"protocol": "https:",
		"host":     "example.com:8443",
		"hostname": "example.com",
		"port":     "8443",
		"pathname": "/path/to",
		"search":   "?q=1",
		"hash":     "#frag",
	}
	for key, w := range want {
		if got := u.Get(key); got != w {
			t.Errorf("Get(%q) = %v, want %q", key, got, w)
		}
	}
}

func TestEnv_ResolveURL(t *testing.T) {
	env := newTestEnv(t, Config{BaseURL: "https://cdn.example.com/game/index.html"})

	got, err := env.resolveURL("assets/ship.png")
	if err != nil {
		t.Fatalf("resolveURL() failed: %v", err)
	}
	if want := "https://cdn.example.com/game/assets/ship.png"; got != want {
		t.Errorf("resolveURL() = %q, want %q", got, want)
	}

	noBase := newTestEnv(t, Config{})
	if _, err := noBase.resolveURL("assets/ship.png"); err == nil {
		t.Error("resolveURL() should fail without a base URL")
	}
}
