package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/frame"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/Glyph8/navermapCrawling/common/pagination"
	"github.com/Glyph8/navermapCrawling/common/region"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is a crawl session state
type State int

const (
	StateSearching State = iota
	StateListing
	StateVisitingDetail
	StateRecovering
	StatePaginating
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateSearching:      "searching",
	StateListing:        "listing",
	StateVisitingDetail: "visiting_detail",
	StateRecovering:     "recovering",
	StatePaginating:     "paginating",
	StateDone:           "done",
	StateAborted:        "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Terminal reports whether no further transitions follow
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Counters tally item outcomes. Visited always equals Collected + Skipped + Errored;
// Filtered counts the subset of Skipped dropped by the region filter.
type Counters struct {
	Visited   int `json:"visited"`
	Collected int `json:"collected"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
	Filtered  int `json:"filtered"`
	Retried   int `json:"retried"`
}

// Summary is what remains of a session once it terminates
type Summary struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	Search     Search    `json:"search"`
	State      State     `json:"state"`
	Counters   Counters  `json:"counters"`
	Pages      int       `json:"pages"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Session crawls one (region, category) search through one browser session.
// It is strictly sequential and owns no global state, so independent sessions
// may run in parallel on separate browser sessions.
type Session struct {
	id        string
	search    Search
	site      Site
	opts      Options
	browser   browser.Session
	sink      Sink
	frames    *frame.Manager
	resolver  *locator.Resolver
	extractor *extract.Extractor
	pager     *pagination.Controller
	predicate region.Predicate
	logger    zerolog.Logger

	state    State
	counters Counters
	paging   bool
	started  time.Time
}

// NewSession prepares a session; nothing touches the browser until Run
func NewSession(search Search, site Site, b browser.Session, sink Sink, opts Options) (*Session, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if search.Query() == "" {
		return nil, errors.New("empty search")
	}
	if sink == nil {
		return nil, errors.New("nil sink")
	}
	if site.Return == "" {
		site.Return = ReturnReenter
	}

	id := uuid.NewString()
	parent := opts.Logger
	if parent == nil {
		parent = &log.Logger
	}
	resolver := locator.NewResolver(b, opts.LocatorTimeout)
	frames := frame.NewManager(b)
	surface := &pagination.DOMSurface{
		Source:      frames,
		Resolver:    resolver,
		Container:   site.ScrollContainer,
		Items:       site.Items,
		NextControl: site.NextPage,
	}

	return &Session{
		id:        id,
		search:    search,
		site:      site,
		opts:      opts,
		browser:   b,
		sink:      sink,
		frames:    frames,
		resolver:  resolver,
		extractor: extract.NewExtractor(b, resolver),
		pager:     pagination.New(surface, b.WaitUntil, site.Scroll, site.Page),
		predicate: region.NewPredicate(search.Region, opts.RegionTokens),
		paging:    site.Scroll != nil || site.Page != nil,
		state:     StateSearching,
		logger: parent.With().
			Str("session", id).
			Str("site", site.Name).
			Str("region", search.Region).
			Str("category", search.Category).
			Logger(),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Counters() Counters {
	return s.counters
}

// Summary returns a snapshot of the session
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.id,
		Site:      s.site.Name,
		Search:    s.search,
		State:     s.state,
		Counters:  s.counters,
		Pages:     s.pager.State().Page,
		StartedAt: s.started,
	}
}

// Run drives the session to Done or Aborted. The returned error wraps
// ErrSessionAborted when the search could not be crawled at all, or the
// context error on cancellation; item failures never surface here.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	ctx = s.logger.WithContext(ctx)
	s.started = time.Now()
	s.logger.Info().Str("query", s.search.Query()).Msg("Crawl session started")

	s.transition(StateSearching)
	if err := s.submitSearch(ctx); err != nil {
		return s.finish(StateAborted, err)
	}

	if s.paging {
		if _, err := s.pager.Reset(ctx); err != nil {
			if browser.IsCanceled(err) {
				return s.finish(StateAborted, err)
			}
			s.logger.Warn().Err(err).Msg("Cannot measure listing, pagination disabled")
			s.paging = false
		}
	}

	next := 0
	for {
		s.transition(StateListing)
		count, err := s.countItems(ctx)
		if err != nil {
			return s.finish(StateAborted, err)
		}

		for ordinal := next; ordinal < count; ordinal++ {
			if s.opts.MaxItems > 0 && s.counters.Visited >= s.opts.MaxItems {
				s.logger.Info().Int("max_items", s.opts.MaxItems).Msg("Item cap reached")
				return s.finish(StateDone, nil)
			}
			if err := s.visit(ctx, ordinal); err != nil {
				return s.finish(StateAborted, err)
			}
		}
		if count > next {
			next = count
		}

		if !s.paging {
			return s.finish(StateDone, nil)
		}
		s.transition(StatePaginating)
		res, err := s.loadMore(ctx)
		if err != nil {
			if browser.IsCanceled(err) || errors.Is(err, errListingLost) {
				return s.finish(StateAborted, err)
			}
			s.logger.Warn().Err(err).Msg("Pagination failed, finishing with what was listed")
			return s.finish(StateDone, nil)
		}
		if !res.Advanced {
			return s.finish(StateDone, nil)
		}
		if res.NewPage {
			s.logger.Info().Int("page", s.pager.State().Page).Int("items", res.ItemCount).Msg("Advanced to next page")
			next = 0
		}
	}
}

func (s *Session) finish(final State, err error) (Summary, error) {
	s.frames.ReturnToTop()
	s.transition(final)

	summary := s.Summary()
	summary.FinishedAt = time.Now()

	event := s.logger.Info()
	if final == StateAborted {
		event = s.logger.Error().Err(err)
	}
	event.
		Int("visited", s.counters.Visited).
		Int("collected", s.counters.Collected).
		Int("skipped", s.counters.Skipped).
		Int("errored", s.counters.Errored).
		Int("pages", summary.Pages).
		Dur("elapsed", summary.FinishedAt.Sub(s.started)).
		Msg("Crawl session finished")

	if err == nil {
		return summary, nil
	}
	summary.Error = err.Error()
	if browser.IsCanceled(err) {
		return summary, err
	}
	return summary, fmt.Errorf("%w: %s: %v", ErrSessionAborted, s.search, err)
}

func (s *Session) transition(next State) {
	if s.state != next {
		s.logger.Debug().Stringer("from", s.state).Stringer("to", next).Msg("Session state")
	}
	s.state = next
}

func (s *Session) listingContext() frame.Context {
	if s.site.ListingFrame == "" {
		return frame.Top
	}
	return frame.Named(s.site.ListingFrame)
}

func (s *Session) submitSearch(ctx context.Context) error {
	url := s.site.SearchURL(s.search.Query())
	if err := s.browser.Navigate(ctx, url); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := s.enterListing(ctx, s.opts.SearchTimeout); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// enterListing moves to the listing context and confirms the listing container is present
func (s *Session) enterListing(ctx context.Context, timeout time.Duration) error {
	target := s.listingContext()
	if err := s.frames.Resync(ctx, target, timeout); err != nil {
		return err
	}
	found, err := s.resolver.ResolveWithin(ctx, s.frames.Document(), s.site.ListingReady, timeout)
	if err != nil {
		return err
	}
	if found.IsAbsent() {
		return fmt.Errorf("%w: no listing container in %s", errListingLost, target)
	}
	return nil
}

// resync returns to a confirmed listing, navigating back once when the listing is gone
func (s *Session) resync(ctx context.Context) error {
	s.transition(StateRecovering)
	err := s.enterListing(ctx, s.opts.FrameTimeout)
	if err == nil || browser.IsCanceled(err) {
		return err
	}
	if s.site.Return == ReturnBack {
		s.frames.ReturnToTop()
		if backErr := s.browser.Back(ctx); backErr == nil {
			err = s.enterListing(ctx, s.opts.FrameTimeout)
			if err == nil {
				return nil
			}
		}
	}
	if errors.Is(err, errListingLost) {
		return err
	}
	return fmt.Errorf("%w: %v", errListingLost, err)
}

func (s *Session) ensureListing(ctx context.Context) error {
	if s.frames.Active() == s.listingContext() {
		return nil
	}
	return s.resync(ctx)
}

func (s *Session) countItems(ctx context.Context) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := s.ensureListing(ctx); err != nil {
			return 0, err
		}
		found, err := s.resolver.Resolve(ctx, s.frames.Document(), s.site.Items)
		if err == nil {
			if match, ok := found.Get(); ok {
				return len(match.Elements), nil
			}
			return 0, nil
		}
		if !browser.IsStale(err) || attempt >= s.opts.Retries {
			return 0, fmt.Errorf("list items: %w", err)
		}
		if err := s.resync(ctx); err != nil {
			return 0, err
		}
	}
}

func (s *Session) loadMore(ctx context.Context) (pagination.Result, error) {
	for attempt := 0; ; attempt++ {
		if err := s.ensureListing(ctx); err != nil {
			return pagination.Result{}, err
		}
		res, err := s.pager.LoadMore(ctx)
		if err == nil || !browser.IsStale(err) || attempt >= s.opts.Retries {
			return res, err
		}
		if err := s.resync(ctx); err != nil {
			return pagination.Result{}, err
		}
	}
}

// visit handles one listing item. Item failures are counted here; only a lost
// listing or cancellation is returned.
func (s *Session) visit(ctx context.Context, ordinal int) error {
	s.counters.Visited++
	logger := s.logger.With().Int("ordinal", ordinal).Int("page", s.pager.State().Page).Logger()

	var rec extract.Record
	for attempt := 0; ; attempt++ {
		var err error
		rec, err = s.collect(ctx, ordinal)
		if err == nil {
			break
		}

		switch {
		case browser.IsCanceled(err), errors.Is(err, errListingLost):
			s.counters.Skipped++
			return err
		case recoverable(err) && attempt < s.opts.Retries:
			s.counters.Retried++
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Recoverable failure, re-synchronizing")
			if err := s.resync(ctx); err != nil {
				s.counters.Skipped++
				return err
			}
			continue
		case recoverable(err), errors.Is(err, browser.ErrContextNotFound):
			s.counters.Skipped++
			logger.Warn().Err(err).Str("event", "item.skipped").Msg("Item skipped")
		default:
			s.counters.Errored++
			logger.Error().Err(err).Str("event", "item.errored").Msg("Item failed")
		}
		return s.resync(ctx)
	}

	s.emit(ctx, logger, rec)
	return s.returnToListing(ctx)
}

// collect activates the item at ordinal and extracts its detail view
func (s *Session) collect(ctx context.Context, ordinal int) (extract.Record, error) {
	if err := s.ensureListing(ctx); err != nil {
		return extract.Record{}, err
	}
	listing := s.frames.Document()

	found, err := s.resolver.Resolve(ctx, listing, s.site.Items)
	if err != nil {
		return extract.Record{}, fmt.Errorf("re-list items: %w", err)
	}
	match, ok := found.Get()
	if !ok || ordinal >= len(match.Elements) {
		return extract.Record{}, fmt.Errorf("%w: ordinal %d", errItemLost, ordinal)
	}
	item := match.Elements[ordinal]

	s.transition(StateVisitingDetail)
	if err := listing.ScrollIntoView(ctx, item); err != nil {
		if browser.IsStale(err) || browser.IsCanceled(err) {
			return extract.Record{}, fmt.Errorf("scroll item into view: %w", err)
		}
		s.logger.Debug().Err(err).Int("ordinal", ordinal).Msg("Scroll into view failed")
	}
	if err := browser.Settle(ctx, s.opts.ScrollSettle); err != nil {
		return extract.Record{}, err
	}
	if err := browser.Activate(ctx, listing, item); err != nil {
		return extract.Record{}, fmt.Errorf("activate item: %w", err)
	}

	detail, err := s.enterDetail(ctx)
	if err != nil {
		return extract.Record{}, err
	}
	rec, err := s.extractor.Extract(ctx, detail, s.site.Schema)
	if err != nil {
		return extract.Record{}, fmt.Errorf("extract: %w", err)
	}

	return rec.WithMeta(extract.Meta{
		Region:      s.search.Region,
		Category:    s.search.Category,
		Page:        s.pager.State().Page,
		Ordinal:     ordinal,
		CollectedAt: time.Now().UTC(),
	}), nil
}

func (s *Session) enterDetail(ctx context.Context) (browser.Document, error) {
	s.frames.ReturnToTop()
	if s.site.DetailFrame != "" {
		if err := s.frames.EnterWithin(ctx, s.site.DetailFrame, s.opts.FrameTimeout); err != nil {
			return nil, fmt.Errorf("open detail: %w", err)
		}
	}
	doc := s.frames.Document()

	if len(s.site.DetailReady) > 0 {
		found, err := s.resolver.ResolveWithin(ctx, doc, s.site.DetailReady, s.opts.DetailTimeout)
		if err != nil {
			return nil, fmt.Errorf("wait detail: %w", err)
		}
		if found.IsAbsent() {
			return nil, errDetailNotReady
		}
	}
	return doc, nil
}

func (s *Session) emit(ctx context.Context, logger zerolog.Logger, rec extract.Record) {
	address := s.site.Schema.AddressField
	if address != "" && !region.MatchRecord(rec, address, s.predicate) {
		s.counters.Skipped++
		s.counters.Filtered++
		value, _ := rec.Get(address)
		logger.Info().Str("address", value).Msg("Record outside target region, dropped")
		return
	}

	if err := s.sink.Write(ctx, rec); err != nil {
		s.counters.Errored++
		logger.Error().Err(err).Str("event", "item.errored").Msg("Failed to write record")
		return
	}
	s.counters.Collected++
}

func (s *Session) returnToListing(ctx context.Context) error {
	s.frames.ReturnToTop()
	if s.site.Return == ReturnBack {
		if err := s.browser.Back(ctx); err != nil {
			if browser.IsCanceled(err) {
				return err
			}
			s.logger.Debug().Err(err).Msg("Navigate back failed")
		}
	}
	if err := s.enterListing(ctx, s.opts.FrameTimeout); err != nil {
		if browser.IsCanceled(err) {
			return err
		}
		return s.resync(ctx)
	}
	s.transition(StateListing)
	return nil
}
