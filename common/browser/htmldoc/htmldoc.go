// Package htmldoc implements browser.Session over a static HTML snapshot.
// Css and id locators are answered by goquery, xpath locators by htmlquery.
// Embedded documents are either registered explicitly or read from an
// iframe's srcdoc attribute.
package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrStatic is returned for operations a snapshot cannot perform
var ErrStatic = errors.New("static snapshot does not support navigation")

// Session is a read-only browser.Session. Clicks are recorded, never performed.
type Session struct {
	top    *Document
	mu     sync.Mutex
	clicks []string
}

// Document is one parsed snapshot
type Document struct {
	name    string
	root    *html.Node
	dom     *goquery.Document
	session *Session
	frames  map[string]*Document
}

type element struct {
	node *html.Node
	doc  *Document
}

// New parses the top-level html and any named frame bodies
func New(page string, frames map[string]string) (*Session, error) {
	s := &Session{}
	top, err := s.parse("", page)
	if err != nil {
		return nil, err
	}
	for name, body := range frames {
		doc, err := s.parse(name, body)
		if err != nil {
			return nil, fmt.Errorf("parse frame %s: %w", name, err)
		}
		top.frames[name] = doc
	}
	s.top = top
	return s, nil
}

func (s *Session) parse(name, body string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		name:    name,
		root:    root,
		dom:     goquery.NewDocumentFromNode(root),
		session: s,
		frames:  map[string]*Document{},
	}, nil
}

// Navigate is not supported by a snapshot
func (s *Session) Navigate(ctx context.Context, url string) error {
	return ErrStatic
}

// Back is not supported by a snapshot
func (s *Session) Back(ctx context.Context) error {
	return ErrStatic
}

func (s *Session) Top() browser.Document {
	return s.top
}

// WaitUntil evaluates cond exactly once since a snapshot never changes
func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return cond(ctx)
}

// Clicks returns the text of every clicked element in order
func (s *Session) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

func (d *Document) Name() string {
	return d.name
}

func (d *Document) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	var nodes []*html.Node
	switch loc.Method {
	case browser.ByID:
		nodes = d.dom.Find(fmt.Sprintf("[id=%q]", loc.Pattern)).Nodes
	case browser.ByCSS:
		nodes = d.dom.Find(loc.Pattern).Nodes
	case browser.ByXPath:
		found, err := htmlquery.QueryAll(d.root, loc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", loc.Pattern, err)
		}
		nodes = found
	default:
		return nil, fmt.Errorf("unknown locator method %q", loc.Method)
	}

	elements := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{node: n, doc: d})
	}
	return elements, nil
}

func (d *Document) Click(ctx context.Context, el browser.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	text, _ := e.Text(ctx)
	d.session.mu.Lock()
	d.session.clicks = append(d.session.clicks, text)
	d.session.mu.Unlock()
	return nil
}

func (d *Document) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := d.own(el)
	return err
}

// Evaluate only understands script activation, which is recorded as a click
func (d *Document) Evaluate(ctx context.Context, script string, el browser.Element) (browser.Value, error) {
	if script != browser.ActivateScript || el == nil {
		return browser.Value{}, browser.ErrUnsupportedScript
	}
	if err := d.Click(ctx, el); err != nil {
		return browser.Value{}, err
	}
	return browser.Value{}, nil
}

// Frame resolves a registered frame first, then an iframe carrying srcdoc
func (d *Document) Frame(ctx context.Context, name string) (browser.Document, error) {
	if doc, ok := d.frames[name]; ok {
		return doc, nil
	}

	sel := d.dom.Find(fmt.Sprintf("iframe[id=%q], iframe[name=%q]", name, name)).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("frame %s: %w", name, browser.ErrContextNotFound)
	}
	srcdoc, ok := sel.Attr("srcdoc")
	if !ok {
		return nil, fmt.Errorf("frame %s has no snapshot: %w", name, browser.ErrContextNotFound)
	}
	doc, err := d.session.parse(name, srcdoc)
	if err != nil {
		return nil, err
	}
	d.frames[name] = doc
	return doc, nil
}

func (d *Document) own(el browser.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return nil, browser.ErrStaleHandle
	}
	return e, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	return htmlquery.InnerText(e.node), nil
}

// Visible reports false when the node or an ancestor is hidden by attribute or inline style
func (e *element) Visible(ctx context.Context) (bool, error) {
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return false, nil
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false, nil
				}
			}
		}
	}
	return true, nil
}
