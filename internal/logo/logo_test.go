package logo

import (
	"testing"

	"github.com/eulerity/imagecrawler/internal/types"
)

func TestClassifyURLTokenAndExtension(t *testing.T) {
	if !Classify("https://cdn.foo.com/assets/brand/logo-main.svg", types.UnknownDimension, types.UnknownDimension, "", "https://foo.com/") {
		t.Error("expected brand/logo filename pattern to classify as logo")
	}
}

func TestClassifyPlainContentImageIsNotLogo(t *testing.T) {
	if Classify("https://cdn.foo.com/articles/2024/summer-sale.jpg", 800, 600, "summer sale banner", "https://foo.com/blog/summer-sale") {
		t.Error("expected ordinary content image to not classify as logo")
	}
}

func TestClassifySiteNameJuxtaposition(t *testing.T) {
	if !Classify("https://cdn.example.com/img/example-logo.png", types.UnknownDimension, types.UnknownDimension, "", "https://example.com/") {
		t.Error("expected site-name/logo juxtaposition to classify as logo")
	}
}

func TestClassifyDimensionsAndAltText(t *testing.T) {
	if !Classify("https://cdn.foo.com/static/icon1.png", 64, 64, "Acme logo", "https://foo.com/about") {
		t.Error("expected small square icon with logo alt text to classify as logo")
	}
}

func TestClassifyAltTextLogoPhrase(t *testing.T) {
	if !Classify("https://cdn.foo.com/media/image123.png", types.UnknownDimension, types.UnknownDimension, "Acme Corp logo", "https://foo.com/") {
		t.Error("expected alt text matching 'X logo' phrase to classify as logo")
	}
}

func TestClassifyPageContextAlone(t *testing.T) {
	if Classify("https://cdn.foo.com/media/photo123.jpg", types.UnknownDimension, types.UnknownDimension, "", "https://foo.com/about") {
		t.Error("page-context cue alone should score only 1, below threshold")
	}
}

func TestClassifyUnknownDimensionsContributeNothing(t *testing.T) {
	if Classify("https://cdn.foo.com/media/image123.png", types.UnknownDimension, types.UnknownDimension, "", "https://foo.com/") {
		t.Error("expected no cues to not classify as logo")
	}
}
