package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// JoinPath safely joins URL paths, handling trailing and leading slashes correctly
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	// Preserve trailing slash if the last path component had one
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// LoopbackURL builds an http URL for a local listener.
// host is the name the listener was configured with (e.g. "localhost"); when empty the
// host of the bound address is used. bound is the address the listener actually
// obtained, so a configured port of 0 resolves to the real port.
func LoopbackURL(host string, bound net.Addr, p string) (string, error) {
	boundHost, port, err := net.SplitHostPort(bound.String())
	if err != nil {
		return "", fmt.Errorf("invalid listener address %q: %w", bound.String(), err)
	}
	if host == "" {
		host = boundHost
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}

	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + strings.TrimPrefix(p, "/"),
	}
	return u.String(), nil
}

// ValidateHTTPURL checks that raw is an absolute http or https URL.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Origin returns the serialized origin of raw, as a browser sends it in the
// Origin header: lowercase scheme and host, default ports omitted.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no origin", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}
