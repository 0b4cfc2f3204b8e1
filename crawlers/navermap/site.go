package navermap

import (
	"fmt"
	"net/url"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/Glyph8/navermapCrawling/common/pagination"
)

// init registers the Naver Map site with the site registry
func init() {
	crawler.RegisterSite(SiteName, NewSite)
}

var (
	listContainer = locator.NewChain(
		browser.CSS("div#_pcmap_list_scroll_container"),
		browser.XPath("//div[@id='_pcmap_list_scroll_container']"),
	)

	listItems = locator.NewChain(
		browser.CSS("li.UEzoS.rTjJo"),
		browser.CSS("li.UEzoS"),
		browser.CSS("li.rTjJo"),
	)

	nextPage = locator.NewChain(
		browser.XPath("//span[@class='place_blind' and text()='다음페이지']/parent::*"),
		browser.XPath("//span[@class='place_blind' and text()='다음페이지']"),
	)

	detailReady = locator.NewChain(
		browser.CSS("span.GHAhO"),
		browser.CSS("div.place_section"),
	)
)

// SearchURL builds the search page url for query
func SearchURL(query string) string {
	return searchBaseURL + url.PathEscape(query)
}

// NewSite builds the Naver Map site extracting with the named schema
func NewSite(schema string) (crawler.Site, error) {
	s, err := GetSchema(schema)
	if err != nil {
		return crawler.Site{}, err
	}

	scroll := pagination.DefaultScrollPolicy()
	page := pagination.DefaultPagePolicy()

	return crawler.Site{
		Name:            SiteName,
		SearchURL:       SearchURL,
		ListingFrame:    ListingFrame,
		DetailFrame:     DetailFrame,
		ListingReady:    listContainer,
		Items:           listItems,
		ScrollContainer: listContainer,
		NextPage:        nextPage,
		DetailReady:     detailReady,
		Schema:          s,
		Return:          crawler.ReturnReenter,
		Scroll:          &scroll,
		Page:            &page,
	}, nil
}

// Schemas returns the names of the available extraction schemas
func Schemas() []string {
	return []string{SchemaPlace, SchemaDatalab}
}

func unknownSchema(name string) error {
	return fmt.Errorf("%w: %s has no schema %q", crawler.ErrInvalidSite, SiteName, name)
}
