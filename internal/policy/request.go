package policy

import (
	"net/http"
	"path"
	"strings"
)

// Fetch Metadata request headers.
const (
	HeaderSecFetchSite = "Sec-Fetch-Site"
	HeaderSecFetchMode = "Sec-Fetch-Mode"
	HeaderSecFetchDest = "Sec-Fetch-Dest"
)

// Sec-Fetch-Site values.
const (
	SiteSameOrigin = "same-origin"
	SiteSameSite   = "same-site"
	SiteCrossSite  = "cross-site"
	SiteNone       = "none"
)

// Sec-Fetch-Mode and Sec-Fetch-Dest values the evaluator and responder care about.
const (
	ModeNavigate = "navigate"

	DestDocument = "document"
	DestFrame    = "frame"
	DestIFrame   = "iframe"
	DestScript   = "script"
	DestEmpty    = "empty"
)

// Request is the read-only view of an inbound request the evaluator needs.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// RequestFrom builds a Request view over r without copying its headers.
func RequestFrom(r *http.Request) Request {
	p := ""
	if r.URL != nil {
		p = r.URL.Path
	}
	return Request{
		Method: r.Method,
		Path:   p,
		Header: r.Header,
	}
}

// headerValue returns the trimmed, lower-cased first value of the header
// and whether the header was present at all. Names match case-insensitively,
// including keys that were set without canonicalization.
func (r Request) headerValue(name string) (string, bool) {
	values := r.Header.Values(name)
	if len(values) == 0 {
		for key, v := range r.Header {
			if len(v) > 0 && strings.EqualFold(key, name) {
				values = v
				break
			}
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(values[0])), true
}

// cleanPath normalizes p so prefix and pattern matching cannot be bypassed
// with dot segments.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
