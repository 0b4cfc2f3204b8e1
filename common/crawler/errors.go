package crawler

import (
	"errors"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/frame"
)

var (
	// ErrSessionAborted is returned when the listing never materialized or could not be recovered
	ErrSessionAborted = errors.New("crawl session aborted")

	// ErrInvalidSite is returned when a site description is incomplete
	ErrInvalidSite = errors.New("invalid site")

	// ErrUnknownSite is returned when no site is registered under a name
	ErrUnknownSite = errors.New("unknown site")

	errItemLost       = errors.New("listing item no longer present")
	errDetailNotReady = errors.New("detail view not ready")
	errListingLost    = errors.New("listing could not be recovered")
)

// recoverable reports whether a failure on an item is worth one retry after re-synchronizing
func recoverable(err error) bool {
	return browser.IsStale(err) ||
		errors.Is(err, errItemLost) ||
		errors.Is(err, errDetailNotReady) ||
		errors.Is(err, frame.ErrNestedEnter)
}
