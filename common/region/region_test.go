package region

import (
	"testing"

	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []string
		n       int
		address string
		want    bool
	}{
		{"same district", []string{"서울", "광진구"}, 2, "서울 광진구 자양동 123-4", true},
		{"other city", []string{"부산", "해운대구"}, 2, "서울 광진구 자양동 123-4", false},
		{"second token only", []string{"서울시", "광진구", "능동"}, 2, "서울 광진구 능동 1", true},
		{"third token ignored", []string{"부산시", "해운대구", "자양동"}, 2, "서울 광진구 자양동 123-4", false},
		{"third token with n=3", []string{"부산시", "해운대구", "자양동"}, 3, "서울 광진구 자양동 123-4", true},
		{"empty predicate", nil, 2, "서울 광진구", false},
		{"empty address", []string{"서울"}, 2, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Predicate{Tokens: tt.tokens, N: tt.n}
			assert.Equal(t, tt.want, p.Matches(tt.address))
		})
	}
}

func TestNewPredicate(t *testing.T) {
	p := NewPredicate("  서울시 광진구   중곡동 ", 0)
	assert.Equal(t, []string{"서울시", "광진구", "중곡동"}, p.Tokens)
	assert.Equal(t, DefaultTokens, p.N)
	assert.Equal(t, []string{"서울시", "광진구"}, p.Leading())
}

func TestMatchRecord(t *testing.T) {
	fields := []string{"name", "address"}
	p := NewPredicate("서울 광진구 자양동", 2)

	ok := extract.NewRecord("place", fields, map[string]string{"name": "a", "address": "서울 광진구 자양동 123-4"}, nil)
	assert.True(t, MatchRecord(ok, "address", p))

	// the sentinel can never satisfy the predicate, even if it happens to contain a token
	sentinel := extract.NewRecord("place", fields, map[string]string{"name": "a", "address": "서울"}, []string{"address"})
	assert.False(t, MatchRecord(sentinel, "address", p))

	assert.False(t, MatchRecord(ok, "addr", p))
}
