package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "guess", http.StatusUnauthorized},
		{"match", "secret", "secret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v1/crawls", nil)
			if tt.header != "" {
				r.Header.Set(ApiKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			ApiKey(tt.key)(ok).ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
