// Package htmlextract pulls image and link candidates out of a parsed HTML
// document for the crawl coordinator to admit and classify.
package htmlextract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eulerity/imagecrawler/internal/types"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".ico"}

var backgroundImageURL = regexp.MustCompile(`background-image\s*:\s*url\(\s*['"]?([^'")]+)['"]?\s*\)`)

var dataSrcAttrs = []string{"data-src", "data-original", "data-lazy-src", "data-srcset", "data-lazy"}

// Extracted holds every image and link candidate found on one page.
type Extracted struct {
	Images []types.ImageCandidate
	Links  []string
}

// Extract parses htmlContent and, resolving every relative reference
// against pageURL, returns image and link candidates. Malformed markup is
// tolerated: goquery's parser never fails on invalid HTML, it simply does
// its best.
func Extract(htmlContent, pageURL string) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	result := &Extracted{}
	seenImages := make(map[string]bool)
	seenLinks := make(map[string]bool)

	addImage := func(raw, alt string, width, height int) {
		resolved, ok := resolve(base, raw)
		if !ok || seenImages[resolved] {
			return
		}
		seenImages[resolved] = true
		result.Images = append(result.Images, types.ImageCandidate{
			RawURL: resolved,
			Alt:    alt,
			Width:  width,
			Height: height,
		})
	}

	addLink := func(raw string) {
		if !isCrawlableLink(raw) {
			return
		}
		resolved, ok := resolve(base, raw)
		if !ok || seenLinks[resolved] {
			return
		}
		seenLinks[resolved] = true
		result.Links = append(result.Links, resolved)
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		width := parseDimension(s, "width")
		height := parseDimension(s, "height")

		if src, ok := s.Attr("src"); ok {
			addImage(src, alt, width, height)
		}
		for _, attr := range dataSrcAttrs {
			val, ok := s.Attr(attr)
			if !ok {
				continue
			}
			if attr == "data-srcset" {
				for _, u := range parseSrcset(val) {
					addImage(u, alt, width, height)
				}
				continue
			}
			addImage(val, alt, width, height)
		}
		if srcset, ok := s.Attr("srcset"); ok {
			for _, u := range parseSrcset(srcset) {
				addImage(u, alt, width, height)
			}
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if !strings.Contains(style, "background-image") {
			return
		}
		m := backgroundImageURL.FindStringSubmatch(style)
		if len(m) == 2 {
			addImage(m[1], "", types.UnknownDimension, types.UnknownDimension)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if hasImageExtension(href) {
			addImage(href, s.Text(), types.UnknownDimension, types.UnknownDimension)
			return
		}
		addLink(href)
	})

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		addLink(src)
	})

	doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		addLink(action)
	})

	return result, nil
}

// parseSrcset splits a comma-separated srcset value and drops each
// candidate's descriptor (the whitespace-delimited width/density token
// after the URL).
func parseSrcset(val string) []string {
	var urls []string
	for _, candidate := range strings.Split(val, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		urls = append(urls, fields[0])
	}
	return urls
}

func parseDimension(s *goquery.Selection, attr string) int {
	val, ok := s.Attr(attr)
	if !ok {
		return types.UnknownDimension
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return types.UnknownDimension
	}
	return n
}

func hasImageExtension(raw string) bool {
	lower := strings.ToLower(raw)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isCrawlableLink(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "#"):
		return false
	}
	return !hasImageExtension(trimmed)
}

// resolve absolutizes raw against base and rejects data: URLs outright.
func resolve(base *url.URL, raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "data:") {
		return "", false
	}

	ref, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
