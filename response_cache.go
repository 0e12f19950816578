package torque

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/torquehq/torque/cache"
)

// CacheRule is one row of the response-caching middleware's path-prefix
// table from spec.md section 4.4: a glob path pattern (single-segment
// `*`, multi-segment `**`) mapped to a ttl and the methods/statuses
// eligible for caching.
type CacheRule struct {
	PathPattern       string
	TTL               time.Duration
	CacheableMethods  []string
	CacheableStatuses []int
	// Headers lists request headers folded into the cache key fingerprint
	// alongside method, path and sorted query, e.g. "Accept-Encoding".
	Headers []string
}

// ResponseCache is the response-caching middleware: check-then-capture
// around the handler, keyed by a request fingerprint, backed by a
// multi-level cache.Cache instead of an in-process map.
type ResponseCache struct {
	cache *cache.Cache
	rules []CacheRule
}

// NewResponseCache returns a ResponseCache backed by c, matching requests
// against rules in order; the first matching rule wins.
func NewResponseCache(c *cache.Cache, rules ...CacheRule) *ResponseCache {
	return &ResponseCache{cache: c, rules: rules}
}

func (rc *ResponseCache) matchRule(path, method string) *CacheRule {
	for i := range rc.rules {
		rule := &rc.rules[i]
		if !globMatch(rule.PathPattern, path) {
			continue
		}
		if !containsString(rule.CacheableMethods, method) {
			continue
		}
		return rule
	}
	return nil
}

// errNotCacheable signals from the GetOrBuild build closure that next
// produced a response whose status isn't in CacheableStatuses, so there
// is nothing to store or share with concurrent callers.
var errNotCacheable = errors.New("response_cache: status not cacheable")

// Wrap returns a Handler that serves req through the cache ahead of
// next: a hit writes the stored response directly, and a miss runs next
// through cache.Cache.GetOrBuild, so that concurrent misses on the same
// key invoke next exactly once and the rest block for its result instead
// of each re-running the handler chain independently.
func (rc *ResponseCache) Wrap(next Handler) Handler {
	return func(req *Request, res *Response) error {
		rule := rc.matchRule(req.Path, req.Method)
		if rule == nil {
			return next(req, res)
		}

		key := responseFingerprint(req, rule)

		var ranNext bool
		blob, err := rc.cache.GetOrBuild(req.Context(), key, rule.TTL, func() ([]byte, error) {
			ranNext = true
			res.Header.Set("X-Cache", "MISS")

			capture := &responseCapture{inner: res.hrw, buf: &bytes.Buffer{}}
			res.hrw = capture

			if err := next(req, res); err != nil {
				return nil, err
			}
			if !containsInt(rule.CacheableStatuses, res.Status) {
				return nil, errNotCacheable
			}
			return encodeCachedResponse(res.Status, res.Header, capture.buf.Bytes()), nil
		})

		if err != nil {
			if err == errNotCacheable {
				if ranNext {
					return nil
				}
				// The in-flight build next() ran for turned out not to be
				// cacheable, so there is no result to share; run next for
				// this caller independently.
				res.Header.Set("X-Cache", "MISS")
				return next(req, res)
			}
			return err
		}
		if ranNext {
			// next already wrote the live response through the capture
			// writer; the encoded blob was only for the cache entry.
			return nil
		}

		status, header, body, ok := decodeCachedResponse(blob)
		if !ok {
			return next(req, res)
		}
		for k, vs := range header {
			for _, v := range vs {
				res.Header.Add(k, v)
			}
		}
		res.Header.Set("X-Cache", "HIT")
		_, err = res.Bytes(status, res.Header.Get("Content-Type"), body)
		return err
	}
}

// responseCapture tees everything written through it into buf while still
// writing through to inner, so the response-cache middleware can store
// what the terminal handler produced without buffering on every request.
type responseCapture struct {
	inner http.ResponseWriter
	buf   *bytes.Buffer
}

func (c *responseCapture) Header() http.Header { return c.inner.Header() }

func (c *responseCapture) WriteHeader(status int) { c.inner.WriteHeader(status) }

func (c *responseCapture) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.inner.Write(b)
}

func (c *responseCapture) Flush() {
	if f, ok := c.inner.(http.Flusher); ok {
		f.Flush()
	}
}

type cachedResponsePayload struct {
	Status int
	Header http.Header
	Body   []byte
}

func encodeCachedResponse(status int, header http.Header, body []byte) []byte {
	b, _ := json.Marshal(cachedResponsePayload{Status: status, Header: header.Clone(), Body: body})
	return b
}

func decodeCachedResponse(blob []byte) (int, http.Header, []byte, bool) {
	var p cachedResponsePayload
	if err := json.Unmarshal(blob, &p); err != nil {
		return 0, nil, nil, false
	}
	return p.Status, p.Header, p.Body, true
}

// responseFingerprint builds the (method, normalized_path, sorted_query,
// selected_headers) key spec.md section 4.4 names.
func responseFingerprint(req *Request, rule *CacheRule) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte('|')
	b.WriteString(normalizeCachePath(req.Path))
	b.WriteByte('|')

	q := req.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(q[k], ","))
		b.WriteByte('&')
	}
	b.WriteByte('|')

	for _, h := range rule.Headers {
		b.WriteString(h)
		b.WriteByte('=')
		b.WriteString(req.Header.Get(h))
		b.WriteByte('&')
	}

	return b.String()
}

// normalizeCachePath lowercases path and strips a trailing slash, except
// for root itself, per spec.md section 6's cache-key normalization rule.
func normalizeCachePath(path string) string {
	path = strings.ToLower(path)
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsInt(ns []int, v int) bool {
	for _, n := range ns {
		if n == v {
			return true
		}
	}
	return false
}

// globMatch matches path against pattern using '/'-segment globbing: "*"
// matches exactly one segment, "**" matches zero or more segments, per
// spec.md's Open Question resolution for response-cache path rules.
func globMatch(pattern, path string) bool {
	pSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	return matchSegments(pSegs, pathSegs)
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	if pattern[0] == "**" {
		if matchSegments(pattern[1:], path) {
			return true
		}
		if len(path) > 0 && matchSegments(pattern, path[1:]) {
			return true
		}
		return false
	}

	if len(path) == 0 {
		return false
	}
	if pattern[0] != "*" && pattern[0] != path[0] {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}
