// Package search normalizes free-text search and structured query inputs and decides which
// retrieval strategy answers them.
package search

import "strings"

// Strategy names the adapter call that answers a page or count request.
type Strategy int

const (
	// All returns every record: no search term, no query.
	All Strategy = iota
	// Search applies a free-text term only.
	Search
	// SearchQuery applies a structured query, with or without a free-text term.
	SearchQuery
)

func (s Strategy) String() string {
	switch s {
	case Search:
		return "search"
	case SearchQuery:
		return "search+query"
	default:
		return "all"
	}
}

// Normalize trims s. A blank input becomes "" which callers treat as absent.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// Resolve normalizes both inputs and picks the strategy.
//
// A present query always wins, even when the search term is absent.
// The returned strings are the normalized values to pass on to the adapter.
func Resolve(search, query string) (Strategy, string, string) {
	search, query = Normalize(search), Normalize(query)
	switch {
	case query != "":
		return SearchQuery, search, query
	case search != "":
		return Search, search, ""
	default:
		return All, "", ""
	}
}
