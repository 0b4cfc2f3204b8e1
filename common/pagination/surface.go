package pagination

import (
	"context"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/locator"
)

const (
	scrollHeightScript   = `() => this.scrollHeight`
	documentHeightScript = `() => (document.scrollingElement || document.body).scrollHeight`
	scrollEndScript      = `() => { this.scrollTop = this.scrollHeight; return this.scrollTop }`
	documentEndScript    = `() => { window.scrollTo(0, (document.scrollingElement || document.body).scrollHeight); return window.scrollY }`
	disabledScript       = `() => { const c = this.closest('a,button') || this; return c.getAttribute('aria-disabled') === 'true' || c.disabled === true }`
)

// DocumentSource yields the document the listing currently lives in
type DocumentSource interface {
	Document() browser.Document
}

// DOMSurface drives a listing through locator chains and scripts evaluated in its document
type DOMSurface struct {
	Source      DocumentSource
	Resolver    *locator.Resolver
	Container   locator.Chain
	Items       locator.Chain
	NextControl locator.Chain
}

// container returns the scroll container, or nil to scroll the document itself
func (s *DOMSurface) container(ctx context.Context) (browser.Element, error) {
	if len(s.Container) == 0 {
		return nil, nil
	}
	found, err := s.Resolver.Probe(ctx, s.Source.Document(), s.Container)
	if err != nil {
		return nil, err
	}
	if match, ok := found.Get(); ok {
		return match.First(), nil
	}
	return nil, nil
}

func (s *DOMSurface) Measure(ctx context.Context) (Measurement, error) {
	doc := s.Source.Document()
	el, err := s.container(ctx)
	if err != nil {
		return Measurement{}, err
	}

	script := documentHeightScript
	if el != nil {
		script = scrollHeightScript
	}
	v, err := doc.Evaluate(ctx, script, el)
	if err != nil {
		return Measurement{}, fmt.Errorf("measure extent: %w", err)
	}

	items, err := s.Resolver.Probe(ctx, doc, s.Items)
	if err != nil {
		return Measurement{}, fmt.Errorf("count items: %w", err)
	}
	count := 0
	if match, ok := items.Get(); ok {
		count = len(match.Elements)
	}
	return Measurement{Extent: v.Float(), Items: count}, nil
}

func (s *DOMSurface) ScrollToEnd(ctx context.Context) error {
	el, err := s.container(ctx)
	if err != nil {
		return err
	}
	script := documentEndScript
	if el != nil {
		script = scrollEndScript
	}
	_, err = s.Source.Document().Evaluate(ctx, script, el)
	return err
}

func (s *DOMSurface) ScrollToFraction(ctx context.Context, fraction float64) error {
	el, err := s.container(ctx)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`() => { window.scrollTo(0, (document.scrollingElement || document.body).scrollHeight * %g); return window.scrollY }`, fraction)
	if el != nil {
		script = fmt.Sprintf(`() => { this.scrollTop = this.scrollHeight * %g; return this.scrollTop }`, fraction)
	}
	_, err = s.Source.Document().Evaluate(ctx, script, el)
	return err
}

// Next clicks the next-page control. A missing or disabled control reports false.
func (s *DOMSurface) Next(ctx context.Context) (bool, error) {
	if len(s.NextControl) == 0 {
		return false, nil
	}
	doc := s.Source.Document()
	found, err := s.Resolver.Resolve(ctx, doc, s.NextControl)
	if err != nil {
		return false, err
	}
	match, ok := found.Get()
	if !ok {
		return false, nil
	}

	control := match.First()
	disabled, err := doc.Evaluate(ctx, disabledScript, control)
	if err == nil && disabled.Bool() {
		return false, nil
	}
	if err != nil && browser.IsStale(err) {
		return false, err
	}

	if err := doc.Click(ctx, control); err != nil {
		return false, fmt.Errorf("click next page: %w", err)
	}
	return true, nil
}
