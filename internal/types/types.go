// Package types holds the data shapes shared across the crawl engine so
// that no component needs to import another component's package just to
// pass a value around.
package types

import "time"

// Options configures a single crawl session.
type Options struct {
	Seed      string
	MaxPages  int
	Workers   int
	DelayMs   int
	UserAgent string

	// RobotsCachePath records the path of the SQLite robots policy cache the
	// caller opened. The crawler does not open or read this path itself; it
	// uses the *storage.RobotsCache passed to crawler.New, if any, and
	// stores entries there with RobotsCacheTTL as their lifetime.
	RobotsCachePath string
	RobotsCacheTTL  time.Duration
}

// Results summarizes the outcome of one crawl session.
type Results struct {
	Images         []string
	PagesProcessed int
	ImagesFound    int
	LogosFound     int
}

// ImageRecord is the per-image metadata the coordinator accumulates. Once
// inserted it is never mutated; subsequent sightings of the same canonical
// URL are no-ops.
type ImageRecord struct {
	URL         string    `json:"url"`
	PageURL     string    `json:"page_url"`
	Alt         string    `json:"alt,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	IsLogo      bool      `json:"is_logo"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// ImageCandidate is what the HTML extractor hands to the coordinator for
// each image reference found on a page, before canonicalization and logo
// classification.
type ImageCandidate struct {
	RawURL string
	Alt    string
	Width  int
	Height int
}

// HostPolicy is the parsed, immutable robots.txt state for one host.
type HostPolicy struct {
	Host        string
	FetchFailed bool
	Groups      map[string]*RuleGroup
	FetchedAt   time.Time
}

// RuleGroup is the set of directives gathered under one or more
// `User-agent:` lines.
type RuleGroup struct {
	Disallow     []string
	Allow        []string
	CrawlDelayMs int
	HasDelay     bool
}

// UnknownDimension marks a width/height that was not declared on the
// element, or that failed to parse as an integer.
const UnknownDimension = -1
