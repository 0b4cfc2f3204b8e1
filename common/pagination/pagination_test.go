package pagination

import (
	"context"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/browser/htmldoc"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	measure   func(s *fakeSurface) Measurement
	scrolls   int
	fractions int
	nextLeft  int
	nexts     int
}

func (f *fakeSurface) Measure(ctx context.Context) (Measurement, error) {
	return f.measure(f), nil
}

func (f *fakeSurface) ScrollToEnd(ctx context.Context) error {
	f.scrolls++
	return nil
}

func (f *fakeSurface) ScrollToFraction(ctx context.Context, fraction float64) error {
	f.fractions++
	return nil
}

func (f *fakeSurface) Next(ctx context.Context) (bool, error) {
	if f.nextLeft == 0 {
		return false, nil
	}
	f.nextLeft--
	f.nexts++
	return true, nil
}

func once(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error) {
	return cond(ctx)
}

func drain(t *testing.T, c *Controller) []Result {
	t.Helper()
	var results []Result
	for i := 0; i < 100; i++ {
		res, err := c.LoadMore(context.Background())
		require.NoError(t, err)
		results = append(results, res)
		if !res.Advanced {
			return results
		}
	}
	t.Fatal("LoadMore never stopped advancing")
	return nil
}

func TestScrollRespectsMaxScrollsWhenExtentNeverStabilizes(t *testing.T) {
	surface := &fakeSurface{measure: func(s *fakeSurface) Measurement {
		return Measurement{Extent: float64(1000 + s.scrolls*500), Items: 10 + s.scrolls*10}
	}}
	policy := DefaultScrollPolicy()
	c := New(surface, once, &policy, nil)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	results := drain(t, c)
	assert.Equal(t, policy.MaxScrolls, surface.scrolls)
	assert.Len(t, results, policy.MaxScrolls+1)
	assert.Equal(t, 110, results[len(results)-2].ItemCount)
	assert.False(t, results[len(results)-1].Advanced)
	assert.Equal(t, 110, c.State().ItemsSeen)
}

func TestScrollStallProbesOnceThenStops(t *testing.T) {
	surface := &fakeSurface{measure: func(s *fakeSurface) Measurement {
		n := s.scrolls
		if n > 2 {
			n = 2
		}
		return Measurement{Extent: float64(1000 + n*500), Items: 10 + n*10}
	}}
	policy := ScrollPolicy{MaxScrolls: 10, StallLimit: 3}
	c := New(surface, once, &policy, nil)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	results := drain(t, c)
	require.Len(t, results, 3)
	assert.Equal(t, 20, results[0].ItemCount)
	assert.Equal(t, 30, results[1].ItemCount)
	assert.False(t, results[2].Advanced)

	// two growing scrolls, three stalled ones, one probe
	assert.Equal(t, 6, surface.scrolls)
	assert.Equal(t, 1, surface.fractions)
	assert.Equal(t, 3, c.State().UnchangedStreak)
}

func TestScrollProbeRecoversLazyList(t *testing.T) {
	surface := &fakeSurface{measure: func(s *fakeSurface) Measurement {
		return Measurement{Extent: float64(1000 + s.fractions*500), Items: 10 + s.fractions*10}
	}}
	policy := ScrollPolicy{MaxScrolls: 10, StallLimit: 3}
	c := New(surface, once, &policy, nil)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	results := drain(t, c)
	require.Len(t, results, 3)
	assert.True(t, results[0].Advanced)
	assert.True(t, results[1].Advanced)
	assert.Equal(t, 30, results[1].ItemCount)
	assert.Equal(t, 2, surface.fractions)
	assert.Equal(t, 10, surface.scrolls)
}

func TestPageCeiling(t *testing.T) {
	surface := &fakeSurface{
		nextLeft: 50,
		measure: func(s *fakeSurface) Measurement {
			return Measurement{Extent: float64(s.nexts), Items: 10}
		},
	}
	policy := DefaultPagePolicy()
	c := New(surface, once, nil, &policy)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	results := drain(t, c)
	require.Len(t, results, 5)
	for _, res := range results[:4] {
		assert.True(t, res.NewPage)
		assert.Equal(t, 10, res.ItemCount)
	}
	assert.Equal(t, 4, surface.nexts)
	assert.Equal(t, 5, c.State().Page)
}

func TestMissingNextControlTerminates(t *testing.T) {
	surface := &fakeSurface{measure: func(s *fakeSurface) Measurement {
		return Measurement{Extent: 100, Items: 5}
	}}
	policy := DefaultPagePolicy()
	c := New(surface, once, nil, &policy)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	res, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, 5, res.ItemCount)
	assert.Equal(t, 1, c.State().Page)
}

func TestScrollThenPage(t *testing.T) {
	surface := &fakeSurface{
		nextLeft: 1,
		measure: func(s *fakeSurface) Measurement {
			// each page grows once, then stalls
			n := s.scrolls
			if n > 1 {
				n = 1
			}
			return Measurement{Extent: float64(s.nexts*10000 + n*100), Items: 10 + n*5}
		},
	}
	scroll := ScrollPolicy{MaxScrolls: 3, StallLimit: 1}
	page := PagePolicy{MaxPages: 5}
	c := New(surface, once, &scroll, &page)
	_, err := c.Reset(context.Background())
	require.NoError(t, err)

	res, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.False(t, res.NewPage)
	assert.Equal(t, 15, res.ItemCount)

	res, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, res.NewPage)
	assert.Equal(t, 2, c.State().Page)
	assert.Equal(t, 0, c.Scrolls())
	assert.Equal(t, 0, c.State().UnchangedStreak)

	// second page scrolls again before trying a page that is not there
	res, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, 1, surface.nexts)
}

const listing = `<html><body>
<div id="_pcmap_list_scroll_container"><ul><li class="UEzoS">a</li><li class="UEzoS">b</li></ul></div>
<a class="eUTV2"><span class="place_blind">다음페이지</span></a>
</body></html>`

type topSource struct {
	s *htmldoc.Session
}

func (t topSource) Document() browser.Document {
	return t.s.Top()
}

func TestDOMSurfaceNext(t *testing.T) {
	s, err := htmldoc.New(listing, nil)
	require.NoError(t, err)
	surface := &DOMSurface{
		Source:      topSource{s},
		Resolver:    locator.NewResolver(s, 0),
		Container:   locator.NewChain(browser.ID("_pcmap_list_scroll_container")),
		Items:       locator.NewChain(browser.CSS("li.UEzoS")),
		NextControl: locator.NewChain(browser.XPath("//span[@class='place_blind' and text()='다음페이지']")),
	}

	ok, err := surface.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"다음페이지"}, s.Clicks())

	surface.NextControl = locator.NewChain(browser.CSS("button.next"))
	ok, err = surface.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = surface.Measure(context.Background())
	assert.ErrorIs(t, err, browser.ErrUnsupportedScript)
}
