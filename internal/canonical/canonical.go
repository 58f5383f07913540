// Package canonical normalizes URLs into the comparable string form the
// rest of the crawl engine uses for admission, deduplication, and the
// visited set.
package canonical

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// trackingParams is the exact, case-insensitive list of query parameter
// names stripped during canonicalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
	"ref":          {},
	"source":       {},
	"session":      {},
	"timestamp":    {},
}

var indexFilePattern = regexp.MustCompile(`(?i)^(index\.(html?|php|asp|jsp)|default\.[a-z0-9]+|home\.[a-z0-9]+)$`)

// Canonicalize normalizes a raw URL string per the engine's equivalence
// rules: lower-cased host with any leading www. stripped, elided default
// ports, no fragment, index-filename-stripped path with no trailing
// slash (except root), tracking query parameters removed, and remaining
// parameters kept in their original order.
//
// Two CanonicalURLs are equal iff their string forms are identical; the
// visited set and image map both rely on that.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("canonicalize: empty URL")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("canonicalize: unsupported scheme %q", u.Scheme)
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("canonicalize: missing host")
	}

	if port := u.Port(); port != "" {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			// elided
		} else {
			host = host + ":" + port
		}
	}
	u.Host = host

	u.Path = canonicalizePath(u.Path)
	u.Fragment = ""
	u.RawQuery = stripTrackingParams(u.RawQuery)
	u.User = nil

	return u.String(), nil
}

func canonicalizePath(p string) string {
	if p == "" {
		return "/"
	}

	segments := strings.Split(p, "/")
	if len(segments) > 0 {
		last := segments[len(segments)-1]
		if indexFilePattern.MatchString(last) {
			segments = segments[:len(segments)-1]
			p = strings.Join(segments, "/")
			if p == "" {
				p = "/"
			}
		}
	}

	if p != "/" && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return p
}

func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		name := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name = pair[:idx]
		}
		if decoded, err := url.QueryUnescape(name); err == nil {
			name = decoded
		}
		if _, tracked := trackingParams[strings.ToLower(name)]; tracked {
			continue
		}
		kept = append(kept, pair)
	}

	return strings.Join(kept, "&")
}

// SiteName derives the "eTLD+1-minus-TLD" label used by the logo
// heuristic: strip a leading www., drop the terminal TLD label, and if
// the remaining tail label is 2-3 characters (a ccSLD like co.uk),
// strip one more label.
func SiteName(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}

	labels := strings.Split(host, ".")
	if len(labels) <= 1 {
		return host
	}

	labels = labels[:len(labels)-1] // drop TLD
	if len(labels) > 1 {
		tail := labels[len(labels)-1]
		if len(tail) >= 2 && len(tail) <= 3 {
			labels = labels[:len(labels)-1]
		}
	}

	return strings.Join(labels, ".")
}

// SameScheme reports whether two URLs share the same scheme, as required
// by admission: a link that changes http<->https is rejected even if the
// host matches.
func SameScheme(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme)
}

// Host returns the lower-cased, www.-stripped host of a canonical or raw
// URL, with a non-default port kept as host:port exactly as Canonicalize
// keeps it, or "" if it cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	scheme := strings.ToLower(u.Scheme)
	if port := u.Port(); port != "" && !((scheme == "http" && port == "80") || (scheme == "https" && port == "443")) {
		host = host + ":" + port
	}
	return host
}

// PathDepth returns the number of "/" separators in the URL's path, used
// by admission to reject implausibly deep URLs.
func PathDepth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	return strings.Count(u.Path, "/")
}
