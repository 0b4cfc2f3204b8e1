package frame

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/rs/zerolog"
)

// ErrNestedEnter is returned when entering a frame while another one is active
var ErrNestedEnter = errors.New("nested frame enter without return to top")

// Context identifies a rendering context: the top-level document or a named frame
type Context struct {
	name string
}

// Top is the top-level document
var Top = Context{}

// Named returns the context of the embedded document with the given id or name
func Named(name string) Context {
	return Context{name: name}
}

func (c Context) IsTop() bool {
	return c.name == ""
}

func (c Context) Name() string {
	return c.name
}

func (c Context) String() string {
	if c.IsTop() {
		return "top"
	}
	return "frame(" + c.name + ")"
}

// Manager tracks the single active rendering context of a session.
// It is not safe for concurrent use.
type Manager struct {
	session browser.Session
	active  Context
	doc     browser.Document
}

// NewManager returns a manager positioned at Top
func NewManager(session browser.Session) *Manager {
	return &Manager{
		session: session,
		active:  Top,
	}
}

// Active returns the current context
func (m *Manager) Active() Context {
	return m.active
}

// Document returns the document of the active context
func (m *Manager) Document() browser.Document {
	if m.active.IsTop() || m.doc == nil {
		return m.session.Top()
	}
	return m.doc
}

// Enter switches into the named frame without waiting for it to appear
func (m *Manager) Enter(ctx context.Context, name string) error {
	if !m.active.IsTop() {
		return fmt.Errorf("enter %s while in %s: %w", name, m.active, ErrNestedEnter)
	}

	doc, err := m.session.Top().Frame(ctx, name)
	if err != nil {
		return fmt.Errorf("enter %s: %w", name, err)
	}
	m.switchTo(ctx, Named(name), doc)
	return nil
}

// EnterWithin waits up to timeout for the named frame to exist, then enters it.
// The frame still missing at the deadline yields browser.ErrContextNotFound.
func (m *Manager) EnterWithin(ctx context.Context, name string, timeout time.Duration) error {
	if !m.active.IsTop() {
		return fmt.Errorf("enter %s while in %s: %w", name, m.active, ErrNestedEnter)
	}

	var doc browser.Document
	ok, err := m.session.WaitUntil(ctx, timeout, func(ctx context.Context) (bool, error) {
		found, err := m.session.Top().Frame(ctx, name)
		if errors.Is(err, browser.ErrContextNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		doc = found
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("enter %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("enter %s after %s: %w", name, timeout, browser.ErrContextNotFound)
	}

	m.switchTo(ctx, Named(name), doc)
	return nil
}

// ReturnToTop makes the top-level document active. Calling it at Top is a no-op;
// the result reports whether the context changed.
func (m *Manager) ReturnToTop() bool {
	if m.active.IsTop() {
		return false
	}
	m.active = Top
	m.doc = nil
	return true
}

// Resync returns to Top and re-enters target, discarding any stale frame handle
func (m *Manager) Resync(ctx context.Context, target Context, timeout time.Duration) error {
	m.ReturnToTop()
	if target.IsTop() {
		return nil
	}
	return m.EnterWithin(ctx, target.Name(), timeout)
}

func (m *Manager) switchTo(ctx context.Context, c Context, doc browser.Document) {
	zerolog.Ctx(ctx).Trace().Str("from", m.active.String()).Str("to", c.String()).Msg("Switching frame")
	m.active = c
	m.doc = doc
}
