// Package assets resolves public asset paths against the base path the
// site is served under.
package assets

import "strings"

func Path(basePath, p string) string {
	if p == "" {
		return ""
	}

	if strings.HasPrefix(p, "data:") || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	base := strings.TrimRight(basePath, "/")
	if base == "" {
		return p
	}

	base = ensureLeadingSlash(base)
	if p == base || strings.HasPrefix(p, base+"/") {
		return p
	}

	return base + p
}

func ensureLeadingSlash(s string) string {
	if strings.HasPrefix(s, "/") {
		return s
	}

	return "/" + s
}
