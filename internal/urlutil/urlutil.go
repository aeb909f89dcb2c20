// Package urlutil normalizes target application URLs.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURL validates an http(s) URL and returns it with exactly one trailing slash.
func BaseURL(raw string) (string, error) {
	u, err := parseHTTP(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	return u.String(), nil
}

// Origin returns scheme://host of raw, or the trimmed input when it is not an http(s) URL.
func Origin(raw string) string {
	u, err := parseHTTP(raw)
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	return u.Scheme + "://" + u.Host
}

func parseHTTP(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q has no host", raw)
	}
	return u, nil
}
