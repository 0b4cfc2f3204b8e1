package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "Run not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "Run not found", body.Msg)
}

func TestWritePagination(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePagination(rec, http.StatusOK, []string{"a", "b"}, 2, 2, 5)

	var body struct {
		Data []string            `json:"data"`
		Meta models.MetaResponse `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, models.MetaResponse{CurrentPage: 2, LastPage: 3, PerPage: 2, Total: 5}, body.Meta)
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query  string
		page   int
		limit  int
		offset int
	}{
		{"", 1, 20, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=-1&limit=abc", 1, 20, 0},
		{"?limit=1000", 1, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/places"+tt.query, nil)
			page, limit, offset := PageParams(r, 20, 100)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}
