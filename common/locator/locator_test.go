package locator

import (
	"context"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/browser/htmldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the generic span matches both nodes, the specific class only the detail name
const ambiguous = `<html><body>
<div class="summary"><span class="name">Listing Title</span></div>
<div id="detail"><span class="GHAhO">Detail Title</span></div>
</body></html>`

func text(t *testing.T, el browser.Element) string {
	t.Helper()
	s, err := el.Text(context.Background())
	require.NoError(t, err)
	return s
}

func TestResolveFollowsChainOrder(t *testing.T) {
	s, err := htmldoc.New(ambiguous, nil)
	require.NoError(t, err)
	r := NewResolver(s, time.Second)
	ctx := context.Background()

	tests := []struct {
		name     string
		chain    Chain
		position int
		want     string
	}{
		{
			name:     "specific first",
			chain:    NewChain(browser.CSS("span.GHAhO"), browser.CSS("span")),
			position: 0,
			want:     "Detail Title",
		},
		{
			name:     "generic first wins even though it is the wrong element",
			chain:    NewChain(browser.CSS("span"), browser.CSS("span.GHAhO")),
			position: 0,
			want:     "Listing Title",
		},
		{
			name:     "falls through to xpath",
			chain:    NewChain(browser.CSS("span.gone"), browser.ID("nope"), browser.XPath("//div[@id='detail']/span")),
			position: 2,
			want:     "Detail Title",
		},
		{
			name:     "invalid strategy is skipped",
			chain:    NewChain(browser.XPath("//span[@class="), browser.ID("detail")),
			position: 1,
			want:     "Detail Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, s.Top(), tt.chain)
			require.NoError(t, err)
			match, ok := got.Get()
			require.True(t, ok)
			assert.Equal(t, tt.position, match.Position)
			assert.Equal(t, tt.chain[tt.position], match.Strategy)
			assert.Equal(t, tt.want, text(t, match.First()))
		})
	}
}

func TestResolveUnresolvedIsNotAnError(t *testing.T) {
	s, err := htmldoc.New(ambiguous, nil)
	require.NoError(t, err)
	r := NewResolver(s, time.Second)

	got, err := r.Resolve(context.Background(), s.Top(), NewChain(browser.CSS("span.missing"), browser.XPath("//table")))
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())

	got, err = r.Resolve(context.Background(), s.Top(), nil)
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

type staleDoc struct {
	browser.Document
	queries int
}

func (d *staleDoc) Name() string { return "entryIframe" }

func (d *staleDoc) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	d.queries++
	return nil, browser.ErrStaleContext
}

type pollingSession struct {
	browser.Session
	timeouts []time.Duration
}

func (s *pollingSession) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error) {
	s.timeouts = append(s.timeouts, timeout)
	return cond(ctx)
}

func TestResolvePropagatesStaleContext(t *testing.T) {
	session := &pollingSession{}
	doc := &staleDoc{}
	r := NewResolver(session, 2*time.Second)

	got, err := r.Resolve(context.Background(), doc, NewChain(browser.CSS("a"), browser.CSS("b")))
	assert.ErrorIs(t, err, browser.ErrStaleContext)
	assert.True(t, got.IsAbsent())
	assert.Equal(t, 1, doc.queries)
}

func TestResolveWaitsPerStrategy(t *testing.T) {
	s, err := htmldoc.New(ambiguous, nil)
	require.NoError(t, err)
	session := &pollingSession{}
	r := NewResolver(session, 2*time.Second)

	_, err = r.Resolve(context.Background(), s.Top(), NewChain(browser.CSS("i"), browser.CSS("b"), browser.CSS("span")))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, session.timeouts)

	session.timeouts = nil
	_, err = r.Probe(context.Background(), s.Top(), NewChain(browser.CSS("span")))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, session.timeouts)
}

func TestChainString(t *testing.T) {
	c := NewChain(browser.CSS("li.UEzoS"), browser.XPath("//li"))
	assert.Equal(t, "[css(li.UEzoS) > xpath(//li)]", c.String())
}
