package frame

import (
	"context"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/browser/htmldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *htmldoc.Session {
	t.Helper()
	s, err := htmldoc.New(`<html><body><div id="top">top</div></body></html>`, map[string]string{
		"searchIframe": `<ul><li>first</li></ul>`,
		"entryIframe":  `<span class="GHAhO">detail</span>`,
	})
	require.NoError(t, err)
	return s
}

func TestEnterAndReturn(t *testing.T) {
	m := NewManager(newSession(t))
	ctx := context.Background()

	assert.True(t, m.Active().IsTop())
	require.NoError(t, m.Enter(ctx, "searchIframe"))
	assert.Equal(t, Named("searchIframe"), m.Active())
	assert.Equal(t, "searchIframe", m.Document().Name())

	items, err := m.Document().Query(ctx, browser.CSS("li"))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.True(t, m.ReturnToTop())
	assert.True(t, m.Active().IsTop())
	assert.Equal(t, "", m.Document().Name())
}

func TestNestedEnterRejected(t *testing.T) {
	m := NewManager(newSession(t))
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, "searchIframe"))
	err := m.Enter(ctx, "entryIframe")
	assert.ErrorIs(t, err, ErrNestedEnter)
	err = m.EnterWithin(ctx, "entryIframe", time.Second)
	assert.ErrorIs(t, err, ErrNestedEnter)
	assert.Equal(t, Named("searchIframe"), m.Active())

	m.ReturnToTop()
	require.NoError(t, m.Enter(ctx, "entryIframe"))
}

func TestReturnToTopIsIdempotent(t *testing.T) {
	m := NewManager(newSession(t))
	require.NoError(t, m.Enter(context.Background(), "entryIframe"))

	assert.True(t, m.ReturnToTop())
	assert.NotPanics(t, func() {
		assert.False(t, m.ReturnToTop())
	})
	assert.True(t, m.Active().IsTop())
}

func TestEnterMissingFrame(t *testing.T) {
	m := NewManager(newSession(t))
	ctx := context.Background()

	assert.ErrorIs(t, m.Enter(ctx, "nope"), browser.ErrContextNotFound)
	assert.ErrorIs(t, m.EnterWithin(ctx, "nope", 10*time.Millisecond), browser.ErrContextNotFound)
	assert.True(t, m.Active().IsTop())
}

func TestResync(t *testing.T) {
	m := NewManager(newSession(t))
	ctx := context.Background()

	require.NoError(t, m.Enter(ctx, "searchIframe"))
	require.NoError(t, m.Resync(ctx, Named("entryIframe"), time.Second))
	assert.Equal(t, Named("entryIframe"), m.Active())

	require.NoError(t, m.Resync(ctx, Top, time.Second))
	assert.True(t, m.Active().IsTop())
}

func TestContextString(t *testing.T) {
	assert.Equal(t, "top", Top.String())
	assert.Equal(t, "frame(entryIframe)", Named("entryIframe").String())
}
