package remote

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Endpoint is a validated remote service URL
type Endpoint struct {
	URL  *url.URL
	Host string
	Port string
}

// ParseEndpoint validates raw and fills in the scheme's default port
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidEndpoint, raw)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}

	port := u.Port()
	switch strings.ToLower(u.Scheme) {
	case "http":
		if port == "" {
			port = "80"
		}
	case "https":
		if port == "" {
			port = "443"
		}
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	return Endpoint{URL: u, Host: u.Hostname(), Port: port}, nil
}

// Addr returns host:port
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.URL.String()
}
