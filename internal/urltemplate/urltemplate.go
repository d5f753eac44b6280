// Package urltemplate fills {name} placeholders in request URL templates.
//
// Substitution never produces a URL with a hole in it: every referenced
// placeholder must have a non-blank value or resolution fails before any
// request can be built.
package urltemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/i474232898/openweather-collector/internal/common"
)

var tokenPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the distinct placeholder names in template, in order of first appearance.
func Placeholders(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Resolve replaces each {name} token in template with values[name].
// Values landing in the authority are inserted verbatim, values in the path are
// path-escaped and values in the query are query-escaped.
func Resolve(template string, values map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(template) {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: no value for placeholder(s) %s", common.ErrConfiguration, strings.Join(missing, ", "))
	}

	pathStart, queryStart := boundaries(template)

	var b strings.Builder
	b.Grow(len(template))
	last := 0
	for _, loc := range tokenPattern.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(template[last:loc[0]])
		value := values[template[loc[2]:loc[3]]]
		switch {
		case loc[0] >= queryStart:
			b.WriteString(url.QueryEscape(value))
		case loc[0] >= pathStart:
			b.WriteString(url.PathEscape(value))
		default:
			b.WriteString(value)
		}
		last = loc[1]
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// ResolveURL resolves template and checks that the result is an absolute http(s) URL.
func ResolveURL(template string, values map[string]string) (*url.URL, error) {
	raw, err := Resolve(template, values)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %s", common.ErrMalformedRequest, u.Scheme, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %s", common.ErrMalformedRequest, raw)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%w: invalid port %q in %s", common.ErrMalformedRequest, p, raw)
		}
	}
	return u, nil
}

// boundaries returns the offsets where the path and the query of template begin.
// Both are len(template) when absent.
func boundaries(template string) (pathStart, queryStart int) {
	authority := 0
	if i := strings.Index(template, "://"); i >= 0 {
		authority = i + len("://")
	}

	queryStart = len(template)
	if i := strings.IndexByte(template[authority:], '?'); i >= 0 {
		queryStart = authority + i
	}

	pathStart = queryStart
	if i := strings.IndexByte(template[authority:queryStart], '/'); i >= 0 {
		pathStart = authority + i
	}
	return pathStart, queryStart
}
