// Package logo implements the heuristic that decides whether an extracted
// image is a site logo rather than incidental content.
package logo

import (
	"regexp"
	"strings"

	"github.com/eulerity/imagecrawler/internal/canonical"
	"github.com/eulerity/imagecrawler/internal/types"
)

var urlTokens = []string{
	"logo", "brand", "icon", "badge", "symbol", "emblem", "trademark", "logotype", "identity", "branding",
}

var urlExtensions = []string{".ico", ".svg", ".png"}

var logoPathSegments = []string{
	"/img/logo", "/images/logo", "/assets/logo", "/static/logo",
	"/assets/brand", "/img/brand", "/images/brand", "/icons/", "/logos/",
}

var logoFilenamePattern = regexp.MustCompile(`(?i).*/(brand|logo|icon|symbol|badge)[-_]?[a-z0-9]*\.(png|jpg|jpeg|gif|svg|ico|webp)$`)

var juxtaposeSeparators = []string{"-", "_", ""}

var juxtaposeContextTokens = []string{"header", "footer", "navbar", ".svg", ".ico"}

var altLogoPhrase = regexp.MustCompile(`(?i).*\b[a-z0-9]+ logo\b.*`)

var preferredDimensions = map[int]bool{16: true, 32: true, 48: true, 64: true, 96: true, 128: true, 192: true, 256: true}

const threshold = 2

// Classify reports whether the image at imageURL, seen on pageURL with the
// given alt text and (possibly unknown) dimensions, is a logo.
func Classify(imageURL string, width, height int, altText, pageURL string) bool {
	score := urlCueScore(imageURL)
	score += siteNameScore(imageURL, pageURL)
	score += dimensionScore(width, height)
	score += altTextScore(altText)
	score += pageContextScore(imageURL, pageURL)
	return score >= threshold
}

func urlCueScore(imageURL string) int {
	lower := strings.ToLower(imageURL)
	score := 0

	for _, token := range urlTokens {
		if strings.Contains(lower, token) {
			score++
			break
		}
	}
	for _, ext := range urlExtensions {
		if strings.HasSuffix(lower, ext) {
			score++
			break
		}
	}
	for _, seg := range logoPathSegments {
		if strings.Contains(lower, seg) {
			score++
			break
		}
	}
	if logoFilenamePattern.MatchString(lower) {
		score += 2
	}

	if score > 3 {
		score = 3
	}
	return score
}

func siteNameScore(imageURL, pageURL string) int {
	host := canonical.Host(pageURL)
	site := strings.ToLower(canonical.SiteName(host))
	if len(site) <= 3 {
		return 0
	}

	lower := strings.ToLower(imageURL)

	for _, token := range urlTokens {
		for _, sep := range juxtaposeSeparators {
			if strings.Contains(lower, site+sep+token) || strings.Contains(lower, token+sep+site) {
				return 3
			}
		}
	}

	if strings.Contains(lower, site) {
		for _, ctx := range juxtaposeContextTokens {
			if strings.Contains(lower, ctx) {
				return 2
			}
		}
	}
	return 0
}

func dimensionScore(width, height int) int {
	if width == types.UnknownDimension || height == types.UnknownDimension {
		return 0
	}
	score := 0

	maxDim, minDim := width, height
	if minDim > maxDim {
		maxDim, minDim = minDim, maxDim
	}
	if minDim > 0 && float64(maxDim)/float64(minDim) <= 1.5 {
		score++
	}
	if preferredDimensions[width] || preferredDimensions[height] {
		score++
	}
	if width < 300 && height < 300 {
		score++
	}

	if score > 2 {
		score = 2
	}
	return score
}

func altTextScore(altText string) int {
	if altText == "" {
		return 0
	}
	lower := strings.ToLower(altText)
	score := 0
	for _, token := range urlTokens {
		if strings.Contains(lower, token) {
			score += 2
			break
		}
	}
	if altLogoPhrase.MatchString(lower) {
		score += 3
	}
	return score
}

func pageContextScore(imageURL, pageURL string) int {
	score := 0
	lowerImage := strings.ToLower(imageURL)
	if strings.Contains(lowerImage, "/header/") || strings.Contains(lowerImage, "/footer/") {
		score++
	}
	lowerPage := strings.ToLower(pageURL)
	for _, seg := range []string{"/about", "/contact", "/home", "/index"} {
		if strings.Contains(lowerPage, seg) {
			score++
			break
		}
	}
	return score
}
