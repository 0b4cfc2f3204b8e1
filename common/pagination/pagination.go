package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/rs/zerolog"
)

// Measurement is one observation of the listing's growth signals
type Measurement struct {
	Extent float64
	Items  int
}

func (m Measurement) grewFrom(prev Measurement) bool {
	return m.Extent != prev.Extent || m.Items != prev.Items
}

// Surface is the scrollable, pageable listing the controller drives
type Surface interface {
	Measure(ctx context.Context) (Measurement, error)
	ScrollToEnd(ctx context.Context) error
	ScrollToFraction(ctx context.Context, fraction float64) error
	// Next activates the next-page control, reporting false when there is none
	Next(ctx context.Context) (bool, error)
}

// WaitFunc polls cond for at most timeout, normally browser.Session.WaitUntil
type WaitFunc func(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error)

// ScrollPolicy configures incremental loading by scrolling
type ScrollPolicy struct {
	MaxScrolls int
	StallLimit int
	Settle     time.Duration
}

// DefaultScrollPolicy returns the policy used for simple sites
func DefaultScrollPolicy() ScrollPolicy {
	return ScrollPolicy{
		MaxScrolls: 10,
		StallLimit: 3,
		Settle:     2 * time.Second,
	}
}

// PagePolicy configures page-by-page advancement
type PagePolicy struct {
	MaxPages int
	Settle   time.Duration
}

// DefaultPagePolicy returns the five-page ceiling
func DefaultPagePolicy() PagePolicy {
	return PagePolicy{
		MaxPages: 5,
		Settle:   2 * time.Second,
	}
}

// State is the controller's view of the listing, reset on every search
type State struct {
	ItemsSeen       int
	LastExtent      float64
	UnchangedStreak int
	Page            int
}

// Result reports the outcome of LoadMore
type Result struct {
	Advanced  bool
	ItemCount int
	// NewPage is true when a page advance replaced the item set
	NewPage bool
}

// Controller decides when a listing has more content to offer.
// When both policies are set, scrolling is exhausted before each page advance.
type Controller struct {
	surface Surface
	wait    WaitFunc
	scroll  *ScrollPolicy
	page    *PagePolicy

	state      State
	scrolls    int
	probed     bool
	scrollDone bool
	pageDone   bool
}

// New returns a controller; a nil policy disables that strategy
func New(surface Surface, wait WaitFunc, scroll *ScrollPolicy, page *PagePolicy) *Controller {
	c := &Controller{
		surface: surface,
		wait:    wait,
		scroll:  scroll,
		page:    page,
	}
	c.clear()
	return c
}

// State returns a copy of the current pagination state
func (c *Controller) State() State {
	return c.state
}

// Scrolls returns the number of scroll requests issued on the current page
func (c *Controller) Scrolls() int {
	return c.scrolls
}

func (c *Controller) clear() {
	c.state = State{Page: 1}
	c.scrolls = 0
	c.probed = false
	c.scrollDone = c.scroll == nil
	c.pageDone = c.page == nil
}

// Reset starts a new search and records the baseline measurement
func (c *Controller) Reset(ctx context.Context) (Measurement, error) {
	c.clear()
	m, err := c.surface.Measure(ctx)
	if err != nil {
		return Measurement{}, fmt.Errorf("measure baseline: %w", err)
	}
	c.state.ItemsSeen = m.Items
	c.state.LastExtent = m.Extent
	return m, nil
}

// LoadMore grows the listing by scrolling, then by paging. It returns
// Advanced=false once both strategies are exhausted; that is not an error.
func (c *Controller) LoadMore(ctx context.Context) (Result, error) {
	if !c.scrollDone {
		res, err := c.scrollMore(ctx)
		if err != nil || res.Advanced {
			return res, err
		}
	}
	if !c.pageDone {
		return c.nextPage(ctx)
	}
	return Result{ItemCount: c.state.ItemsSeen}, nil
}

func (c *Controller) scrollMore(ctx context.Context) (Result, error) {
	logger := zerolog.Ctx(ctx)
	policy := c.scroll
	last := Measurement{Extent: c.state.LastExtent, Items: c.state.ItemsSeen}

	for c.scrolls < policy.MaxScrolls {
		if err := c.surface.ScrollToEnd(ctx); err != nil {
			return Result{}, fmt.Errorf("scroll to end: %w", err)
		}
		c.scrolls++

		m, err := c.settle(ctx, policy.Settle, last)
		if err != nil {
			return Result{}, err
		}

		if !m.grewFrom(last) {
			c.state.UnchangedStreak++
			if c.state.UnchangedStreak < policy.StallLimit {
				continue
			}
			if c.probed || c.scrolls >= policy.MaxScrolls {
				logger.Debug().Int("scrolls", c.scrolls).Int("items", m.Items).Msg("Scrolling stalled")
				break
			}

			c.probed = true
			m, err = c.probe(ctx, policy, last)
			if err != nil {
				return Result{}, err
			}
			if !m.grewFrom(last) {
				logger.Debug().Int("scrolls", c.scrolls).Int("items", m.Items).Msg("Scrolling stalled after probe")
				break
			}
		}

		c.state.UnchangedStreak = 0
		c.state.LastExtent = m.Extent
		c.probed = false
		last = m

		if m.Items > c.state.ItemsSeen {
			c.state.ItemsSeen = m.Items
			return Result{Advanced: true, ItemCount: m.Items}, nil
		}
	}

	c.scrollDone = true
	return Result{ItemCount: c.state.ItemsSeen}, nil
}

// probe scrolls to the midpoint and back to the end, waking lazily virtualized lists
func (c *Controller) probe(ctx context.Context, policy *ScrollPolicy, last Measurement) (Measurement, error) {
	if err := c.surface.ScrollToFraction(ctx, 0.5); err != nil {
		return Measurement{}, fmt.Errorf("probe scroll: %w", err)
	}
	if err := c.surface.ScrollToEnd(ctx); err != nil {
		return Measurement{}, fmt.Errorf("probe scroll to end: %w", err)
	}
	c.scrolls++
	return c.settle(ctx, policy.Settle, last)
}

// settle waits up to d for the listing to change and returns the latest measurement
func (c *Controller) settle(ctx context.Context, d time.Duration, last Measurement) (Measurement, error) {
	var latest Measurement
	var measured bool
	_, err := c.wait(ctx, d, func(ctx context.Context) (bool, error) {
		m, err := c.surface.Measure(ctx)
		if err != nil {
			return false, err
		}
		latest, measured = m, true
		return m.grewFrom(last), nil
	})
	if err != nil {
		return Measurement{}, fmt.Errorf("measure: %w", err)
	}
	if !measured {
		m, err := c.surface.Measure(ctx)
		if err != nil {
			return Measurement{}, fmt.Errorf("measure: %w", err)
		}
		latest = m
	}
	return latest, nil
}

func (c *Controller) nextPage(ctx context.Context) (Result, error) {
	if c.state.Page >= c.page.MaxPages {
		zerolog.Ctx(ctx).Debug().Int("page", c.state.Page).Msg("Page ceiling reached")
		c.pageDone = true
		return Result{ItemCount: c.state.ItemsSeen}, nil
	}

	before, err := c.surface.Measure(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("measure: %w", err)
	}
	ok, err := c.surface.Next(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("next page: %w", err)
	}
	if !ok {
		zerolog.Ctx(ctx).Debug().Int("page", c.state.Page).Msg("No next page control")
		c.pageDone = true
		return Result{ItemCount: c.state.ItemsSeen}, nil
	}

	page := c.state.Page + 1
	c.clear()
	c.state.Page = page

	m, err := c.settle(ctx, c.page.Settle, before)
	if err != nil {
		return Result{}, err
	}
	c.state.ItemsSeen = m.Items
	c.state.LastExtent = m.Extent
	return Result{Advanced: true, ItemCount: m.Items, NewPage: true}, nil
}
