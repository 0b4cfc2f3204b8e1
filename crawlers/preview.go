package crawlers

import (
	"context"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser/htmldoc"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/Glyph8/navermapCrawling/common/region"
)

// Preview is the result of extracting a saved detail page
type Preview struct {
	Site   crawler.Site
	Record extract.Record
	// RegionMatch is set when a region was given
	RegionMatch *bool
}

// ExtractHTML applies the site schema to a detail page snapshot. Nothing is
// clicked or navigated; gated fields that the snapshot hides hold their sentinel.
func ExtractHTML(ctx context.Context, siteName, schema, page, target string, regionTokens int) (Preview, error) {
	site, err := crawler.GetSite(siteName, schema)
	if err != nil {
		return Preview{}, err
	}

	session, err := htmldoc.New(page, nil)
	if err != nil {
		return Preview{}, err
	}

	resolver := locator.NewResolver(session, time.Millisecond)
	rec, err := extract.NewExtractor(session, resolver).Extract(ctx, session.Top(), site.Schema)
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{Site: site, Record: rec}
	if target != "" {
		match := region.MatchRecord(rec, site.Schema.AddressField, region.NewPredicate(target, regionTokens))
		preview.RegionMatch = &match
	}
	return preview, nil
}
