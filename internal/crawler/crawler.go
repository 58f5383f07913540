// Package crawler implements the concurrent crawl coordinator: admission,
// the worker pool, image insertion, and cooperative shutdown.
package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eulerity/imagecrawler/internal/canonical"
	"github.com/eulerity/imagecrawler/internal/fetch"
	"github.com/eulerity/imagecrawler/internal/htmlextract"
	"github.com/eulerity/imagecrawler/internal/logo"
	"github.com/eulerity/imagecrawler/internal/robots"
	"github.com/eulerity/imagecrawler/internal/storage"
	"github.com/eulerity/imagecrawler/internal/types"
)

const (
	maxPathDepth      = 20
	dequeueTimeout    = 1 * time.Second
	politenessJitterMs = 200
)

// Crawler coordinates one crawl session against a single site.
type Crawler struct {
	opts   types.Options
	logger *zap.Logger
	cache  *storage.RobotsCache
	client *http.Client

	seedCanonical string
	sessionHost   string
	scheme        string
	policy        *types.HostPolicy

	admitted *admissionSet
	queue    chan string

	imgMu      sync.Mutex
	images     map[string]*types.ImageRecord
	imageOrder []string

	pagesProcessed atomic.Int64
	running        atomic.Bool
	wg             sync.WaitGroup
	guard          *panicGuard
}

// New validates opts, canonicalizes the seed, and returns a Crawler ready
// for Start. cache may be nil, in which case robots policy is never
// persisted across sessions.
func New(opts types.Options, logger *zap.Logger, cache *storage.RobotsCache) (*Crawler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("crawler: workers must be positive")
	}
	if opts.MaxPages < 0 {
		return nil, fmt.Errorf("crawler: maxPages must not be negative")
	}

	seedCanonical, err := canonical.Canonicalize(opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("crawler: invalid seed: %w", err)
	}
	seedURL, err := url.Parse(seedCanonical)
	if err != nil {
		return nil, fmt.Errorf("crawler: invalid seed: %w", err)
	}

	estimate := uint(opts.MaxPages * 8)
	if estimate < 1024 {
		estimate = 1024
	}

	return &Crawler{
		opts:          opts,
		logger:        logger,
		cache:         cache,
		client:        newHTTPClient(),
		seedCanonical: seedCanonical,
		sessionHost:   canonical.Host(seedCanonical),
		scheme:        seedURL.Scheme,
		admitted:      newAdmissionSet(estimate),
		queue:         make(chan string, estimate),
		images:        make(map[string]*types.ImageRecord),
		guard:         newPanicGuard(logger),
	}, nil
}

// newHTTPClient disables automatic redirect-following: the fetch package
// chases redirects itself so it can canonicalize and loop-detect each hop.
func newHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Start fetches the session's robots policy, admits the seed, spawns the
// worker pool, and blocks until every worker has exited. A zero page
// budget returns empty Results at once, without any request.
func (c *Crawler) Start(ctx context.Context) (*types.Results, error) {
	if c.opts.MaxPages == 0 {
		return c.Results(), nil
	}

	c.policy = c.fetchPolicy(ctx)
	c.running.Store(true)

	c.admit(c.seedCanonical)

	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	c.wg.Wait()
	c.running.Store(false)

	return c.Results(), nil
}

// Stop requests cooperative shutdown and blocks until every worker has
// observed the flag and exited.
func (c *Crawler) Stop() {
	c.running.Store(false)
	c.wg.Wait()
}

func (c *Crawler) fetchPolicy(ctx context.Context) *types.HostPolicy {
	if c.cache != nil {
		if cached, ok := c.cache.Get(c.sessionHost, c.opts.UserAgent); ok {
			return cached
		}
	}

	policy := robots.Fetch(ctx, c.client, c.scheme, c.sessionHost, c.opts.UserAgent, c.logger)
	if c.cache != nil {
		if err := c.cache.Put(c.sessionHost, c.opts.UserAgent, policy, c.opts.RobotsCacheTTL); err != nil {
			c.logger.Debug("robots cache put failed", zap.Error(err))
		}
	}
	return policy
}

// admit runs the C6 admission checks against a candidate URL and, if it
// passes every gate, enqueues it for a worker to fetch.
func (c *Crawler) admit(rawURL string) bool {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return false
	}

	if canonical.PathDepth(trimmed) > maxPathDepth {
		return false
	}

	can, err := canonical.Canonicalize(trimmed)
	if err != nil {
		return false
	}

	if canonical.Host(can) != c.sessionHost {
		return false
	}
	if !canonical.SameScheme(can, c.seedCanonical) {
		return false
	}

	canURL, err := url.Parse(can)
	if err != nil {
		return false
	}
	if !robots.Allowed(c.policy, c.opts.UserAgent, canURL.Path) {
		return false
	}

	admitted := c.admitted.testAndInsert(can, func() bool {
		return c.pagesProcessed.Load() < int64(c.opts.MaxPages)
	})
	if !admitted {
		return false
	}

	select {
	case c.queue <- can:
	default:
		c.logger.Debug("admission queue full, dropping", zap.String("url", can))
	}
	return true
}

// worker dequeues admitted URLs, processes them through the fetch and
// extraction pipeline, and paces itself per the host's robots delay.
func (c *Crawler) worker(ctx context.Context) {
	defer c.wg.Done()

	for c.running.Load() && c.pagesProcessed.Load() < int64(c.opts.MaxPages) {
		pageURL, ok := c.dequeue(dequeueTimeout)
		if !ok {
			if c.pagesProcessed.Load() > 0 && len(c.queue) == 0 {
				return
			}
			continue
		}

		c.pagesProcessed.Add(1)
		c.guard.run(pageURL, func() { c.processPage(ctx, pageURL) })

		delay := robots.CrawlDelay(c.policy, c.opts.UserAgent, time.Duration(c.opts.DelayMs)*time.Millisecond)
		jitter := time.Duration(rand.Intn(politenessJitterMs)) * time.Millisecond
		if !sleepOrDone(ctx, delay+jitter) {
			return
		}
	}
}

// Logger returns the structured logger this crawl session is using.
func (c *Crawler) Logger() *zap.Logger {
	return c.logger
}

// PagesProcessed reports how many pages have been dequeued and processed
// so far; safe to call concurrently with a running crawl.
func (c *Crawler) PagesProcessed() int {
	return int(c.pagesProcessed.Load())
}

// VisitedSnapshot returns a copy of the set of canonical URLs admitted so
// far, safe to call concurrently with a running crawl.
func (c *Crawler) VisitedSnapshot() map[string]struct{} {
	return c.admitted.snapshot()
}

// IsRunning reports whether the crawl session is still accepting and
// processing pages.
func (c *Crawler) IsRunning() bool {
	return c.running.Load()
}

func (c *Crawler) dequeue(timeout time.Duration) (string, bool) {
	select {
	case u := <-c.queue:
		return u, true
	case <-time.After(timeout):
		return "", false
	}
}

func (c *Crawler) processPage(ctx context.Context, pageURL string) {
	result, err := fetch.Fetch(ctx, c.client, pageURL, c.opts.UserAgent, canonical.Canonicalize, c.logger)
	if err != nil {
		c.logger.Debug("fetch failed", zap.String("url", pageURL), zap.Error(err))
		return
	}

	if canonical.Host(result.EffectiveURL) != c.sessionHost {
		c.logger.Debug("effective URL left session host, discarding page",
			zap.String("url", pageURL), zap.String("effective_url", result.EffectiveURL))
		return
	}

	extracted, err := htmlextract.Extract(string(result.Body), result.EffectiveURL)
	if err != nil {
		c.logger.Debug("parse failed", zap.String("url", pageURL), zap.Error(err))
		return
	}

	for _, img := range extracted.Images {
		c.insertImage(img, result.EffectiveURL)
	}
	for _, link := range extracted.Links {
		c.admit(link)
	}
}

// insertImage is C6's image-insertion path: reject empty/data: URLs,
// canonicalize, test-and-insert under a lock, classify on first sighting.
func (c *Crawler) insertImage(candidate types.ImageCandidate, pageURL string) {
	trimmed := strings.TrimSpace(candidate.RawURL)
	if trimmed == "" || strings.HasPrefix(strings.ToLower(trimmed), "data:") {
		return
	}

	can, err := canonical.Canonicalize(trimmed)
	if err != nil {
		return
	}

	c.imgMu.Lock()
	defer c.imgMu.Unlock()

	if _, exists := c.images[can]; exists {
		return
	}

	isLogo := logo.Classify(can, candidate.Width, candidate.Height, candidate.Alt, pageURL)
	record := &types.ImageRecord{
		URL:         can,
		PageURL:     pageURL,
		Alt:         candidate.Alt,
		Width:       candidate.Width,
		Height:      candidate.Height,
		IsLogo:      isLogo,
		FirstSeenAt: time.Now(),
	}
	c.images[can] = record
	c.imageOrder = append(c.imageOrder, can)
}

// Results summarizes the session so far; safe to call concurrently with a
// running crawl, though counts may change between the call and return.
func (c *Crawler) Results() *types.Results {
	c.imgMu.Lock()
	defer c.imgMu.Unlock()

	res := &types.Results{
		PagesProcessed: int(c.pagesProcessed.Load()),
		ImagesFound:    len(c.imageOrder),
	}
	for _, u := range c.imageOrder {
		res.Images = append(res.Images, u)
		if c.images[u].IsLogo {
			res.LogosFound++
		}
	}
	return res
}

// ImageRecords returns every recorded image, in first-sighting order.
func (c *Crawler) ImageRecords() []*types.ImageRecord {
	c.imgMu.Lock()
	defer c.imgMu.Unlock()

	records := make([]*types.ImageRecord, 0, len(c.imageOrder))
	for _, u := range c.imageOrder {
		records = append(records, c.images[u])
	}
	return records
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
