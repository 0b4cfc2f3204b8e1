package crawler

import (
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/Glyph8/navermapCrawling/common/pagination"
	"github.com/rs/zerolog"
)

// ReturnMode is how the session gets from a detail view back to the listing
type ReturnMode string

const (
	// ReturnReenter returns to the top document and enters the listing frame again
	ReturnReenter ReturnMode = "reenter"
	// ReturnBack navigates back in history first
	ReturnBack ReturnMode = "back"
)

// ParseReturnMode accepts "reenter" or "back"; empty selects ReturnReenter
func ParseReturnMode(s string) (ReturnMode, error) {
	switch ReturnMode(s) {
	case "", ReturnReenter:
		return ReturnReenter, nil
	case ReturnBack:
		return ReturnBack, nil
	default:
		return "", fmt.Errorf("%w: return mode %q", ErrInvalidSite, s)
	}
}

// Site describes a master/detail UI: how to search it, where the listing and
// detail views live and what to extract from each detail view
type Site struct {
	Name      string
	SearchURL func(query string) string

	// ListingFrame and DetailFrame name the embedded documents; empty means the top document
	ListingFrame string
	DetailFrame  string

	ListingReady    locator.Chain
	Items           locator.Chain
	ScrollContainer locator.Chain
	NextPage        locator.Chain
	DetailReady     locator.Chain

	Schema extract.Schema
	Return ReturnMode

	// nil disables the strategy
	Scroll *pagination.ScrollPolicy
	Page   *pagination.PagePolicy
}

// Validate checks that the site can drive a session
func (s Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSite)
	}
	if s.SearchURL == nil {
		return fmt.Errorf("%w: %s has no search url builder", ErrInvalidSite, s.Name)
	}
	if len(s.ListingReady) == 0 {
		return fmt.Errorf("%w: %s has no listing container chain", ErrInvalidSite, s.Name)
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("%w: %s has no item chain", ErrInvalidSite, s.Name)
	}
	if s.Page != nil && len(s.NextPage) == 0 {
		return fmt.Errorf("%w: %s pages without a next page chain", ErrInvalidSite, s.Name)
	}
	if _, err := ParseReturnMode(string(s.Return)); err != nil {
		return err
	}
	if err := s.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %s schema: %v", ErrInvalidSite, s.Name, err)
	}
	return nil
}

// Options are the timeout budgets and limits of one session
type Options struct {
	// SearchTimeout bounds the wait for the listing after submitting the query
	SearchTimeout time.Duration
	// LocatorTimeout bounds the wait spent on each locator strategy
	LocatorTimeout time.Duration
	// FrameTimeout bounds the wait for an embedded document to appear
	FrameTimeout time.Duration
	// DetailTimeout bounds the wait for the detail view after activating an item
	DetailTimeout time.Duration
	// ScrollSettle is the pause after scrolling an item into view
	ScrollSettle time.Duration

	RegionTokens int
	// Retries is how many times an item is retried after a recoverable failure
	Retries int
	// MaxItems caps the items visited per search, 0 for no cap
	MaxItems int

	// Logger is the parent of the session logger; nil uses the global logger
	Logger *zerolog.Logger
}

// DefaultOptions returns the budgets used against the live site
func DefaultOptions() Options {
	return Options{
		SearchTimeout:  10 * time.Second,
		LocatorTimeout: 3 * time.Second,
		FrameTimeout:   5 * time.Second,
		DetailTimeout:  5 * time.Second,
		ScrollSettle:   500 * time.Millisecond,
		RegionTokens:   2,
		Retries:        1,
	}
}
