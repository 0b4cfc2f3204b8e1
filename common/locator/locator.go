// Package locator resolves ordered fallback chains of locator strategies
// against a rendering context. The first strategy in chain order that
// produces a live element wins; exhausting the chain is a normal outcome
// reported as mo.None.
package locator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// DefaultTimeout bounds the wait spent on each strategy
const DefaultTimeout = 3 * time.Second

// Chain is an ordered list of strategies, most specific first
type Chain []browser.Locator

// NewChain builds a chain from the given strategies
func NewChain(locators ...browser.Locator) Chain {
	return Chain(locators)
}

func (c Chain) String() string {
	return "[" + strings.Join(lo.Map(c, func(l browser.Locator, _ int) string {
		return l.String()
	}), " > ") + "]"
}

// Match is a resolved chain: the strategy that matched and everything it matched
type Match struct {
	Strategy browser.Locator
	Position int
	Elements []browser.Element
}

// First returns the first matched element in document order
func (m Match) First() browser.Element {
	return m.Elements[0]
}

// Resolver runs chains with a bounded wait per strategy
type Resolver struct {
	session browser.Session
	timeout time.Duration
}

// NewResolver returns a resolver waiting up to timeout on each strategy
func NewResolver(session browser.Session, timeout time.Duration) *Resolver {
	if timeout < 0 {
		timeout = 0
	}
	return &Resolver{session: session, timeout: timeout}
}

// Timeout returns the per-strategy wait
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// Resolve resolves chain in doc using the resolver's default timeout
func (r *Resolver) Resolve(ctx context.Context, doc browser.Document, chain Chain) (mo.Option[Match], error) {
	return r.ResolveWithin(ctx, doc, chain, r.timeout)
}

// Probe checks every strategy once without waiting
func (r *Resolver) Probe(ctx context.Context, doc browser.Document, chain Chain) (mo.Option[Match], error) {
	return r.ResolveWithin(ctx, doc, chain, 0)
}

// ResolveWithin resolves chain in doc, waiting up to timeout on each strategy.
// Only stale handles, stale contexts and cancellation are returned as errors;
// a strategy whose query fails for any other reason is logged and skipped.
func (r *Resolver) ResolveWithin(ctx context.Context, doc browser.Document, chain Chain, timeout time.Duration) (mo.Option[Match], error) {
	logger := zerolog.Ctx(ctx)

	for i, strategy := range chain {
		var found []browser.Element
		var queryErr error

		ok, err := r.session.WaitUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
			elements, err := doc.Query(ctx, strategy)
			if err != nil {
				if browser.IsStale(err) || browser.IsCanceled(err) {
					return false, err
				}
				queryErr = err
				return true, nil
			}
			found = elements
			return len(elements) > 0, nil
		})
		if err != nil {
			return mo.None[Match](), fmt.Errorf("resolve %s: %w", strategy, err)
		}

		if queryErr != nil {
			logger.Warn().
				Err(queryErr).
				Str("strategy", strategy.String()).
				Str("frame", doc.Name()).
				Msg("Locator strategy failed, trying next")
			continue
		}
		if !ok {
			continue
		}

		logger.Trace().
			Str("strategy", strategy.String()).
			Int("position", i).
			Int("matches", len(found)).
			Msg("Locator resolved")
		return mo.Some(Match{Strategy: strategy, Position: i, Elements: found}), nil
	}

	return mo.None[Match](), nil
}
