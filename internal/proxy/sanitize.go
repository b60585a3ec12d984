package proxy

import (
	"net/url"
	"strings"
)

// SanitizePath normalizes an attacker-controlled sub-path so it cannot
// traverse above the upstream base. Every ".." sequence is stripped and
// slash runs are collapsed. This is a textual defense only; it may mangle
// legitimate paths containing a literal "..", which is an accepted tradeoff.
func SanitizePath(raw string) string {
	p := strings.ReplaceAll(raw, "..", "")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// BuildTargetURL resolves a sanitized sub-path against the upstream base
// URL and carries the original query string over unmodified.
func BuildTargetURL(base *url.URL, subPath, rawQuery string) *url.URL {
	target := base.ResolveReference(&url.URL{Path: SanitizePath(subPath)})
	target.RawQuery = rawQuery
	return target
}
