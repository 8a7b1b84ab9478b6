package hostenv

import (
	"net/url"
	"strings"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// URL is a parsed absolute URL.
type URL struct {
	u *url.URL
}

// ParseURL parses an absolute URL. Relative references are rejected.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, protocol.NewTypeError("failed to construct 'URL': invalid URL '%s'", raw)
	}
	if isSpecialScheme(u.Scheme) && u.Host == "" && u.Scheme != "file" {
		return nil, protocol.NewTypeError("failed to construct 'URL': invalid URL '%s'", raw)
	}
	return &URL{u: u}, nil
}

// Href returns the serialized URL.
func (u *URL) Href() string { return u.u.String() }

// Origin returns scheme://host[:port], or "null" for opaque origins.
func (u *URL) Origin() string {
	return originOf(u.u)
}

// Get exposes URL components to generic property access.
func (u *URL) Get(key string) any {
	switch key {
	case "href":
		return u.Href()
	case "origin":
		return u.Origin()
	case "protocol":
		return u.u.Scheme + ":"
	case "host":
		return u.u.Host
	case "hostname":
		return u.u.Hostname()
	case "port":
		return u.u.Port()
	case "pathname":
		return u.u.EscapedPath()
	case "search":
		if u.u.RawQuery == "" {
			return ""
		}
		return "?" + u.u.RawQuery
	case "hash":
		if u.u.Fragment == "" {
			return ""
		}
		return "#" + u.u.EscapedFragment()
	}
	return protocol.Undefined{}
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	if !isSpecialScheme(scheme) || scheme == "file" || u.Host == "" {
		return "null"
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == defaultPort(scheme) {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return scheme + "://" + host + ":" + port
	}
	return scheme + "://" + host
}

func isSpecialScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https", "ws", "wss", "ftp", "file":
		return true
	}
	return false
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	case "ftp":
		return "21"
	}
	return ""
}

// Location is the page address the environment pretends to be loaded from.
type Location struct {
	origin string
	err    error
}

// Origin returns the page origin.
func (l *Location) Origin() (string, error) {
	return l.origin, l.err
}
