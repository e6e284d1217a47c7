package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: " \t\n ", want: ""},
		{name: "padded", in: "  abc  ", want: "abc"},
		{name: "inner spaces kept", in: " a b ", want: "a b"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestResolve(t *testing.T) {
	tc := []struct {
		name       string
		search     string
		query      string
		want       Strategy
		wantSearch string
		wantQuery  string
	}{
		{name: "nothing", want: All},
		{name: "blank search", search: "   ", want: All},
		{name: "blank both", search: " ", query: "\t", want: All},
		{name: "search only", search: "  abc  ", want: Search, wantSearch: "abc"},
		{name: "query only", query: `title = "x"`, want: SearchQuery, wantQuery: `title = "x"`},
		{name: "search and query", search: " abc ", query: " duration > 3 ", want: SearchQuery, wantSearch: "abc", wantQuery: "duration > 3"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, search, query := Resolve(tt.search, tt.query)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSearch, search)
			assert.Equal(t, tt.wantQuery, query)
		})
	}

	t.Run("exactly three outcomes", func(t *testing.T) {
		inputs := []string{"", " ", "x", " y "}
		seen := map[Strategy]bool{}
		for _, s := range inputs {
			for _, q := range inputs {
				got, _, _ := Resolve(s, q)
				seen[got] = true
				switch {
				case Normalize(q) != "":
					assert.Equal(t, SearchQuery, got)
				case Normalize(s) != "":
					assert.Equal(t, Search, got)
				default:
					assert.Equal(t, All, got)
				}
			}
		}
		assert.Len(t, seen, 3)
	})
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "all", All.String())
	assert.Equal(t, "search", Search.String())
	assert.Equal(t, "search+query", SearchQuery.String())
}
