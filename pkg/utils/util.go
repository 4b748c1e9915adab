package utils

import (
	"strings"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
)

func GetIP(addr string) string {
	if strings.Contains(addr, ":") {
		return strings.Split(addr, ":")[0]
	}
	return addr
}

func GetPort(addr string) string {
	if strings.Contains(addr, ":") {
		return strings.Split(addr, ":")[1]
	}
	return ""
}

// ParseURIList parses a comma-separated SIP URI list as it appears in
// Route/Record-Route/Contact header values. Angle brackets and display
// names are stripped, unparsable entries are dropped.
func ParseURIList(value string) []sip.Uri {
	var uris []sip.Uri
	for _, part := range SplitURIList(value) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if open := strings.IndexByte(part, '<'); open >= 0 {
			part = part[open+1:]
			if end := strings.IndexByte(part, '>'); end >= 0 {
				part = part[:end]
			}
		}
		if uri, err := parser.ParseSipUri(part); err == nil {
			uris = append(uris, uri.Clone())
		}
	}
	return uris
}

// SplitURIList splits on commas that are not inside <> brackets.
func SplitURIList(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// FormatURIList renders URIs as a Route-style header value.
func FormatURIList(uris []sip.Uri) string {
	parts := make([]string, 0, len(uris))
	for _, uri := range uris {
		parts = append(parts, "<"+uri.String()+">")
	}
	return strings.Join(parts, ", ")
}

// HeaderValue strips the "Name: " prefix a header's String() carries.
func HeaderValue(h sip.Header) string {
	s := h.String()
	if i := strings.Index(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}
