package browser

import (
	"context"
	"fmt"
	"time"
)

// Method identifies how a Locator pattern is interpreted
type Method string

const (
	ByID    Method = "id"
	ByCSS   Method = "css"
	ByXPath Method = "xpath"
)

// Locator is a single location strategy: a method plus a pattern
type Locator struct {
	Method  Method `json:"method"`
	Pattern string `json:"pattern"`
}

// ID returns a locator matching an element id
func ID(id string) Locator {
	return Locator{Method: ByID, Pattern: id}
}

// CSS returns a locator matching a css selector
func CSS(selector string) Locator {
	return Locator{Method: ByCSS, Pattern: selector}
}

// XPath returns a locator matching an xpath expression
func XPath(expr string) Locator {
	return Locator{Method: ByXPath, Pattern: expr}
}

func (l Locator) String() string {
	return fmt.Sprintf("%s(%s)", l.Method, l.Pattern)
}

// Element is an opaque handle to a live node.
// A handle is only valid until the document that produced it navigates.
type Element interface {
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
}

// Document is one rendering context, either the top-level page or a named embedded frame.
type Document interface {
	// Name returns the frame identifier, empty for the top-level document
	Name() string

	// Query returns every element currently matching the locator. It never waits.
	Query(ctx context.Context, loc Locator) ([]Element, error)

	// Click activates the element
	Click(ctx context.Context, el Element) error

	// ScrollIntoView scrolls the element into the visible viewport
	ScrollIntoView(ctx context.Context, el Element) error

	// Evaluate runs a function expression with `this` bound to el, or to the
	// document when el is nil, and returns its JSON result
	Evaluate(ctx context.Context, script string, el Element) (Value, error)

	// Frame returns the embedded document with the given id or name
	Frame(ctx context.Context, name string) (Document, error)
}

// Condition is polled by WaitUntil until it reports true
type Condition func(ctx context.Context) (bool, error)

// Session is one browsing context: a single tab that is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Top() Document
	WaitUntil(ctx context.Context, timeout time.Duration, cond Condition) (bool, error)
}
