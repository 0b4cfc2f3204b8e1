package crawlers

import (
	"context"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/crawlers/navermap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTML(t *testing.T) {
	preview, err := ExtractHTML(context.Background(), navermap.SiteName, "", detailFrame, "서울시 광진구 능동", 2)
	require.NoError(t, err)

	name, _ := preview.Record.Get(navermap.FieldName)
	assert.Equal(t, "서울어린이대공원", name)
	assert.Equal(t, navermap.SchemaPlace, preview.Record.Schema())
	require.NotNil(t, preview.RegionMatch)
	assert.True(t, *preview.RegionMatch)

	preview, err = ExtractHTML(context.Background(), navermap.SiteName, "", detailFrame, "부산시 해운대구", 2)
	require.NoError(t, err)
	assert.False(t, *preview.RegionMatch)

	preview, err = ExtractHTML(context.Background(), navermap.SiteName, "", detailFrame, "", 2)
	require.NoError(t, err)
	assert.Nil(t, preview.RegionMatch)

	_, err = ExtractHTML(context.Background(), navermap.SiteName, "reviews", detailFrame, "", 2)
	assert.ErrorIs(t, err, crawler.ErrInvalidSite)
}
