package rodbrowser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
)

// Session is a browser.Session backed by a single rod tab
type Session struct {
	page      *rod.Page
	incognito *rod.Browser
	cfg       Config
}

// document wraps either the tab itself or an iframe's content page
type document struct {
	name string
	page *rod.Page
}

type element struct {
	el  *rod.Element
	doc *document
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := s.page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, classify(err))
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, classify(err))
	}
	return nil
}

func (s *Session) Back(ctx context.Context) error {
	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("navigate back: %w", classify(err))
	}
	return nil
}

func (s *Session) Top() browser.Document {
	return &document{page: s.page}
}

func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error) {
	return browser.PollUntil(ctx, timeout, s.cfg.PollInterval, cond)
}

// Close releases the tab and its incognito context
func (s *Session) Close() error {
	var errs []error
	if err := s.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if s.incognito != nil {
		if err := s.incognito.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close incognito context: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *document) Name() string {
	return d.name
}

func (d *document) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	page := d.page.Context(ctx)

	var found rod.Elements
	var err error
	switch loc.Method {
	case browser.ByID:
		found, err = page.Elements(fmt.Sprintf("[id=%q]", loc.Pattern))
	case browser.ByCSS:
		found, err = page.Elements(loc.Pattern)
	case browser.ByXPath:
		found, err = page.ElementsX(loc.Pattern)
	default:
		return nil, fmt.Errorf("unknown locator method %q", loc.Method)
	}
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w", loc, classify(err))
	}

	elements := make([]browser.Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, &element{el: el, doc: d})
	}
	return elements, nil
}

func (d *document) Click(ctx context.Context, el browser.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", classify(err))
	}
	return nil
}

func (d *document) ScrollIntoView(ctx context.Context, el browser.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	if err := e.el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", classify(err))
	}
	return nil
}

func (d *document) Evaluate(ctx context.Context, script string, el browser.Element) (browser.Value, error) {
	var res *proto.RuntimeRemoteObject
	var err error
	if el == nil {
		res, err = d.page.Context(ctx).Eval(script)
	} else {
		e, ownErr := d.own(el)
		if ownErr != nil {
			return browser.Value{}, ownErr
		}
		res, err = e.el.Context(ctx).Eval(script)
	}
	if err != nil {
		return browser.Value{}, fmt.Errorf("evaluate: %w", classify(err))
	}
	return browser.ParseValue(res.Value.JSON("", "")), nil
}

// Frame looks up an iframe by id or name and returns its content document
func (d *document) Frame(ctx context.Context, name string) (browser.Document, error) {
	page := d.page.Context(ctx)
	found, err := page.Elements(fmt.Sprintf("iframe[id=%q], iframe[name=%q]", name, name))
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", name, classify(err))
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("frame %s: %w", name, browser.ErrContextNotFound)
	}

	content, err := found.First().Frame()
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", name, classify(err))
	}
	return &document{name: name, page: content}, nil
}

func (d *document) own(el browser.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.doc.page != d.page {
		return nil, browser.ErrStaleHandle
	}
	return e, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("text: %w", classify(err))
	}
	return text, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	visible, err := e.el.Context(ctx).Visible()
	if err != nil {
		return false, fmt.Errorf("visible: %w", classify(err))
	}
	return visible, nil
}

var (
	staleContextMessages = []string{
		"cannot find context with specified id",
		"execution context was destroyed",
		"inspected target navigated or closed",
		"frame with the given id was not found",
	}
	staleHandleMessages = []string{
		"could not find node with given id",
		"no node with given id found",
		"node with given id does not belong to the document",
		"node is detached from document",
		"object reference chain is too long",
	}
)

// classify maps rod and CDP failures onto the browser error taxonomy
func classify(err error) error {
	if err == nil || browser.IsCanceled(err) {
		return err
	}

	var objErr *rod.ObjectNotFoundError
	if errors.As(err, &objErr) {
		return fmt.Errorf("%w: %v", browser.ErrStaleHandle, err)
	}

	msg := err.Error()
	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		msg = cdpErr.Message + " " + cdpErr.Data
	}
	msg = strings.ToLower(msg)

	for _, m := range staleContextMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", browser.ErrStaleContext, err)
		}
	}
	for _, m := range staleHandleMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", browser.ErrStaleHandle, err)
		}
	}
	return err
}
