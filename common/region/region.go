package region

import (
	"strings"

	"github.com/Glyph8/navermapCrawling/common/extract"
)

// DefaultTokens is how many leading tokens of a region are matched
const DefaultTokens = 2

// Predicate is a target scope as administrative units from coarse to fine
type Predicate struct {
	Tokens []string
	N      int
}

// NewPredicate splits region on whitespace; n <= 0 selects DefaultTokens
func NewPredicate(region string, n int) Predicate {
	if n <= 0 {
		n = DefaultTokens
	}
	return Predicate{Tokens: strings.Fields(region), N: n}
}

// Leading returns the tokens that take part in matching
func (p Predicate) Leading() []string {
	n := p.N
	if n <= 0 {
		n = DefaultTokens
	}
	if n > len(p.Tokens) {
		n = len(p.Tokens)
	}
	return p.Tokens[:n]
}

// Matches reports whether any leading token is a substring of address
func (p Predicate) Matches(address string) bool {
	for _, token := range p.Leading() {
		if token != "" && strings.Contains(address, token) {
			return true
		}
	}
	return false
}

// MatchRecord applies p to the record's address field. A missing address never matches.
func MatchRecord(rec extract.Record, addressField string, p Predicate) bool {
	if rec.IsMissing(addressField) {
		return false
	}
	address, ok := rec.Get(addressField)
	if !ok {
		return false
	}
	return p.Matches(address)
}
