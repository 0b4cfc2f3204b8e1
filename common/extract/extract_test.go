package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/browser"
	"github.com/Glyph8/navermapCrawling/common/browser/htmldoc"
	"github.com/Glyph8/navermapCrawling/common/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detail = `<html><body>
<span class="GHAhO">  어니언 성수  </span>
<span class="lnJFt">카페</span>
<span class="LDgIH">서울 광진구 자양동 123-4</span>
<div><div>분위기</div><div>아늑한,
  조용한</div></div>
<div class="rank"><span>인기순위</span><span>1</span><span>위</span><span class="place_blind">36.6%</span></div>
<div>20대</div>
<a><span>더보기</span></a>
<div class="sJgQj">인기토픽
 디저트
 뷰</div>
</body></html>`

func schema() Schema {
	return Schema{
		Name: "test",
		Rules: []Rule{
			{Field: "name", Chain: locator.NewChain(browser.CSS("span.GHAhO"))},
			{Field: "category", Chain: locator.NewChain(browser.CSS("span.lnJFt"))},
			{Field: "description", Chain: locator.NewChain(browser.CSS("div.XtBbS"))},
			{Field: "address", Chain: locator.NewChain(browser.CSS("span.LDgIH"))},
			{
				Field:  "atmosphere",
				Chain:  locator.NewChain(browser.XPath("//div[contains(text(), '분위기')]/following-sibling::div")),
				Within: locator.NewChain(browser.CSS("div.sJgQj")),
				Label:  "분위기",
				Gated:  true,
			},
			{
				Field:  "topics",
				Chain:  locator.NewChain(browser.XPath("//div[contains(text(), '인기토픽')]/following-sibling::div")),
				Within: locator.NewChain(browser.CSS("div.sJgQj")),
				Label:  "인기토픽",
				Gated:  true,
			},
			{
				Field: "age",
				Parts: []locator.Chain{
					locator.NewChain(browser.XPath("//span[text()='인기순위']/parent::div//span[@class='place_blind']")),
					locator.NewChain(browser.XPath("//span[text()='인기순위']/parent::div/following-sibling::div")),
				},
				Separator: "_",
				Gated:     true,
			},
		},
		AddressField: "address",
		Expand:       locator.NewChain(browser.XPath("//span[contains(text(), '더보기')]")),
		Sentinel:     "정보 없음",
	}
}

func TestExtract(t *testing.T) {
	s, err := htmldoc.New(detail, nil)
	require.NoError(t, err)
	x := NewExtractor(s, locator.NewResolver(s, 0))

	rec, err := x.Extract(context.Background(), s.Top(), schema())
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "category", "description", "address", "atmosphere", "topics", "age"}, rec.Fields())
	assert.Equal(t, []string{
		"어니언 성수",
		"카페",
		"정보 없음",
		"서울 광진구 자양동 123-4",
		"아늑한, 조용한",
		"디저트 뷰",
		"36.6%_20대",
	}, rec.Values())
	assert.Equal(t, []string{"description"}, rec.Missing())
	assert.True(t, rec.IsMissing("description"))
	assert.Equal(t, "test", rec.Schema())

	// the expand control is activated once even with several gated fields
	assert.Equal(t, []string{"더보기"}, s.Clicks())
}

// coveredDoc reads like the wrapped document but every click fails
type coveredDoc struct {
	browser.Document
	clicks int
}

func (d *coveredDoc) Click(ctx context.Context, el browser.Element) error {
	d.clicks++
	return errors.New("element is covered")
}

func TestExtractIgnoresFailedExpandClick(t *testing.T) {
	s, err := htmldoc.New(detail, nil)
	require.NoError(t, err)
	x := NewExtractor(s, locator.NewResolver(s, 0))
	doc := &coveredDoc{Document: s.Top()}

	rec, err := x.Extract(context.Background(), doc, schema())
	require.NoError(t, err)

	assert.Equal(t, 1, doc.clicks)
	atmosphere, _ := rec.Get("atmosphere")
	assert.Equal(t, "아늑한, 조용한", atmosphere)
	age, _ := rec.Get("age")
	assert.Equal(t, "36.6%_20대", age)
	assert.Equal(t, []string{"description"}, rec.Missing())
}

func TestExtractAllUnresolved(t *testing.T) {
	s, err := htmldoc.New(`<html><body><p>empty</p></body></html>`, nil)
	require.NoError(t, err)
	x := NewExtractor(s, locator.NewResolver(s, 0))

	rec, err := x.Extract(context.Background(), s.Top(), schema())
	require.NoError(t, err)
	for _, f := range rec.Fields() {
		v, ok := rec.Get(f)
		assert.True(t, ok)
		assert.Equal(t, "정보 없음", v, f)
	}
	assert.Len(t, rec.Missing(), 7)
	assert.Empty(t, s.Clicks())
}

func TestExtractPartialComposite(t *testing.T) {
	s, err := htmldoc.New(`<div><span>인기순위</span><span class="place_blind">12%</span></div>`, nil)
	require.NoError(t, err)
	x := NewExtractor(s, locator.NewResolver(s, 0))

	rec, err := x.Extract(context.Background(), s.Top(), schema())
	require.NoError(t, err)
	age, _ := rec.Get("age")
	assert.Equal(t, "정보 없음", age)
}

type staleDoc struct {
	browser.Document
}

func (staleDoc) Name() string { return "entryIframe" }

func (staleDoc) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	return nil, browser.ErrStaleContext
}

type onceSession struct {
	browser.Session
}

func (onceSession) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) (bool, error) {
	return cond(ctx)
}

func TestExtractStaleContextPropagates(t *testing.T) {
	x := NewExtractor(onceSession{}, locator.NewResolver(onceSession{}, 0))

	_, err := x.Extract(context.Background(), staleDoc{}, schema())
	assert.ErrorIs(t, err, browser.ErrStaleContext)
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, schema().Validate())

	assert.ErrorIs(t, Schema{}.Validate(), ErrEmptySchema)

	dup := schema()
	dup.Rules = append(dup.Rules, Rule{Field: "name", Chain: locator.NewChain(browser.CSS("h1"))})
	assert.ErrorIs(t, dup.Validate(), ErrDuplicateField)

	badAddr := schema()
	badAddr.AddressField = "addr"
	assert.ErrorIs(t, badAddr.Validate(), ErrUnknownAddress)

	noChain := schema()
	noChain.Rules = append(noChain.Rules, Rule{Field: "empty"})
	assert.ErrorIs(t, noChain.Validate(), ErrRuleWithoutChain)

	badKey := schema()
	badKey.KeyFields = []string{"name", "phone"}
	assert.ErrorIs(t, badKey.Validate(), ErrUnknownKey)
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "a b c", DefaultNormalize("  a\n b\r\n\n c  "))
	assert.Equal(t, "디저트", Compose(StripLabel("인기토픽"), Trim)("인기토픽 디저트"))
	assert.Equal(t, "", CollapseLines("\n\n"))
}

func TestRecordWithMetaCopies(t *testing.T) {
	rec := NewRecord("s", []string{"a"}, map[string]string{"a": "1"}, nil)
	tagged := rec.WithMeta(Meta{Region: "서울시 광진구 능동", Page: 2})

	assert.Equal(t, "", rec.Meta().Region)
	assert.Equal(t, 2, tagged.Meta().Page)

	m := tagged.Map()
	m["a"] = "changed"
	v, _ := tagged.Get("a")
	assert.Equal(t, "1", v)
}

func TestRecordKey(t *testing.T) {
	rec := NewRecord("s", []string{"name", "kind", "address"},
		map[string]string{"name": "어니언 성수", "kind": "카페", "address": "서울 성동구 아차산로9길 8"}, nil)

	assert.Equal(t, "어니언 성수|카페|서울 성동구 아차산로9길 8", rec.Key())
	assert.Equal(t, "어니언 성수|서울 성동구 아차산로9길 8", rec.WithKey("name", "address").Key())
}
