// Package robots fetches and evaluates per-host robots.txt policy. One
// HostPolicy is built once per host at the start of a crawl session and is
// immutable and freely readable afterward.
package robots

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eulerity/imagecrawler/internal/types"
	"go.uber.org/zap"
)

const fetchTimeout = 5 * time.Second

// Fetch retrieves and parses {scheme}://{host}/robots.txt. Any transport
// failure or non-200 response yields a HostPolicy with FetchFailed=true,
// which downstream treats as fully permissive — it is never itself an
// error the caller must handle.
func Fetch(ctx context.Context, client *http.Client, scheme, host, userAgent string, logger *zap.Logger) *types.HostPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := &types.HostPolicy{Host: host, FetchedAt: time.Now()}

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		policy.FetchFailed = true
		return policy
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("robots fetch failed", zap.String("host", host), zap.Error(err))
		policy.FetchFailed = true
		return policy
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("robots fetch non-200", zap.String("host", host), zap.Int("status", resp.StatusCode))
		policy.FetchFailed = true
		return policy
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		policy.FetchFailed = true
		return policy
	}

	policy.Groups = Parse(body)
	return policy
}

// Parse groups Disallow/Allow/Crawl-delay directives by the most recent
// User-agent line(s); several consecutive User-agent lines share the
// group that follows them.
func Parse(body []byte) map[string]*types.RuleGroup {
	groups := make(map[string]*types.RuleGroup)

	var currentAgents []string
	lastWasAgent := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		key, value, ok := splitDirective(line)
		if !ok {
			continue
		}

		switch strings.ToLower(key) {
		case "user-agent":
			agent := strings.ToLower(strings.TrimSpace(value))
			if agent == "" {
				continue
			}
			if lastWasAgent {
				currentAgents = append(currentAgents, agent)
			} else {
				currentAgents = []string{agent}
			}
			if _, exists := groups[agent]; !exists {
				groups[agent] = &types.RuleGroup{}
			}
			lastWasAgent = true
		case "disallow":
			addPath(groups, currentAgents, value, false)
			lastWasAgent = false
		case "allow":
			addPath(groups, currentAgents, value, true)
			lastWasAgent = false
		case "crawl-delay":
			seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err == nil {
				for _, a := range currentAgents {
					g := groups[a]
					g.CrawlDelayMs = int(seconds * 1000)
					g.HasDelay = true
				}
			}
			lastWasAgent = false
		default:
			lastWasAgent = false
		}
	}

	return groups
}

func splitDirective(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func addPath(groups map[string]*types.RuleGroup, agents []string, path string, allow bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	for _, a := range agents {
		g := groups[a]
		if g == nil {
			g = &types.RuleGroup{}
			groups[a] = g
		}
		if allow {
			g.Allow = append(g.Allow, path)
		} else {
			g.Disallow = append(g.Disallow, path)
		}
	}
}

// Allowed decides whether agent A may fetch path P under policy. If the
// policy's robots.txt fetch failed, everything is allowed. Otherwise the
// agent's own group is consulted if present, else the "*" group, else
// access is allowed. Within a group, access is granted iff some Allow
// pattern matches P, or no Disallow pattern matches P — allow patterns
// take precedence, and this is a deliberately weaker test than
// longest-match-wins (see DESIGN.md).
func Allowed(policy *types.HostPolicy, agent, path string) bool {
	if policy == nil || policy.FetchFailed {
		return true
	}

	group := resolveGroup(policy, agent)
	if group == nil {
		return true
	}

	for _, pattern := range group.Allow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	for _, pattern := range group.Disallow {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// CrawlDelay resolves the configured per-request delay for agent A,
// falling back to the "*" group's delay, then to fallback.
func CrawlDelay(policy *types.HostPolicy, agent string, fallback time.Duration) time.Duration {
	if policy == nil || policy.Groups == nil {
		return fallback
	}

	if g, ok := policy.Groups[strings.ToLower(agent)]; ok && g.HasDelay {
		return time.Duration(g.CrawlDelayMs) * time.Millisecond
	}
	if g, ok := policy.Groups["*"]; ok && g.HasDelay {
		return time.Duration(g.CrawlDelayMs) * time.Millisecond
	}
	return fallback
}

func resolveGroup(policy *types.HostPolicy, agent string) *types.RuleGroup {
	if policy.Groups == nil {
		return nil
	}
	if g, ok := policy.Groups[strings.ToLower(agent)]; ok {
		return g
	}
	if g, ok := policy.Groups["*"]; ok {
		return g
	}
	return nil
}

// matchPattern interprets a robots.txt path pattern against P: "*" means
// any run of characters, "?" is a literal question mark, "." is a
// literal dot, the match anchors to the start of P, a trailing "$"
// anchors to the end, and otherwise any prefix match succeeds.
func matchPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	body := strings.TrimSuffix(pattern, "$")

	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range body {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(`\?`)
		case '.':
			sb.WriteString(`\.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if anchored {
		sb.WriteByte('$')
	}

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
