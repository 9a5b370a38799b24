// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses "Name: value" strings into an http.Header. Repeated names
// add values.
func Headers(headers []string) (http.Header, error) {
	h := http.Header{}
	for _, raw := range headers {
		key, value, ok := KeyValue(raw, ':')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name: value", raw)
		}
		h.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return h, nil
}

// Values parses "name=value" strings into url.Values.
func Values(pairs []string) (url.Values, error) {
	v := url.Values{}
	for _, raw := range pairs {
		key, value, ok := KeyValue(raw, '=')
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", raw)
		}
		v.Add(key, value)
	}
	return v, nil
}
