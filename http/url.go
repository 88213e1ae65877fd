package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

const schemeSeparator = "://"

// URLResolver turns a path or absolute URL into the final request URL.
type URLResolver struct {
	baseURL string
	query   *linkedhashmap.Map
}

// NewURLResolver creates a resolver rooted at baseURL, which may be empty.
func NewURLResolver(baseURL string) *URLResolver {
	return &URLResolver{baseURL: baseURL, query: linkedhashmap.New()}
}

// BaseURL returns the configured base URL.
func (r *URLResolver) BaseURL() string {
	return r.baseURL
}

// WithQueryParameters merges query into the accumulated parameters. Later values win,
// but a key keeps the position of its first insertion.
func (r *URLResolver) WithQueryParameters(query map[string]any) {
	for _, key := range sortedKeys(query) {
		r.query.Put(key, queryValue(query[key]))
	}
}

// HasQuery reports whether any query parameter has been set.
func (r *URLResolver) HasQuery() bool {
	return !r.query.Empty()
}

// QueryString renders the accumulated parameters as k=v pairs joined by "&".
func (r *URLResolver) QueryString() string {
	var b strings.Builder
	it := r.query.Iterator()
	for it.Next() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(it.Key().(string)))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(it.Value().(string)))
	}
	return b.String()
}

// Resolve builds the absolute URL for pathOrURL. Paths are appended to the base URL, runs of
// slashes after the scheme collapse to one, and the path always ends with a single slash.
// Accumulated query parameters are appended on every call.
func (r *URLResolver) Resolve(pathOrURL string) (string, error) {
	target, inlineQuery := splitQuery(pathOrURL)
	target = strings.Trim(target, "/")

	if !isAbsoluteURL(target) {
		target = strings.TrimRight(r.baseURL, "/") + "/" + target
	}

	resolved := normalizePath(target)

	query := joinQuery(inlineQuery, r.QueryString())
	if query != "" {
		resolved += "?" + query
	}

	parsed, err := url.Parse(resolved)
	if err != nil {
		return "", NewURLError(resolved, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", NewURLError(resolved, nil)
	}
	return resolved, nil
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// normalizePath collapses repeated slashes after the scheme separator and enforces one
// trailing slash.
func normalizePath(s string) string {
	prefix := ""
	rest := s
	if idx := strings.Index(s, schemeSeparator); idx >= 0 {
		prefix = s[:idx+len(schemeSeparator)]
		rest = s[idx+len(schemeSeparator):]
	}

	var b strings.Builder
	b.Grow(len(rest) + 1)
	lastSlash := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		b.WriteByte(c)
	}

	return prefix + strings.TrimRight(b.String(), "/") + "/"
}

// splitQuery separates an inline query string (and drops any fragment) from a path.
func splitQuery(s string) (path, query string) {
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

func joinQuery(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "&")
}

func queryValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []string:
		return strings.Join(value, ",")
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, queryValue(item))
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}
