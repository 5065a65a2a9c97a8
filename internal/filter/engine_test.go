package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"kpwatch/internal/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		item    model.Listing
		filters []model.Filter
		want    bool
	}{
		{
			name:    "no filters passes everything",
			item:    model.Listing{Title: "anything", Description: "whatever"},
			filters: nil,
			want:    true,
		},
		{
			name: "include word matches",
			item: model.Listing{Title: "Samsung 55 inch", Description: "kao nov"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "55"},
			},
			want: true,
		},
		{
			name: "include word no match",
			item: model.Listing{Title: "Samsung 32 inch", Description: "kao nov"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "55"},
			},
			want: false,
		},
		{
			name: "include is case insensitive",
			item: model.Listing{Title: "LG ULTRA HD televizor"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "ultra hd"},
			},
			want: true,
		},
		{
			name: "exclude word blocks match",
			item: model.Listing{Title: "Galaxy S21", Description: "razbijen ekran"},
			filters: []model.Filter{
				{Kind: model.FilterExclude, Scope: model.ScopeAll, Value: "razbijen"},
			},
			want: false,
		},
		{
			name: "include + exclude: both match, exclude wins",
			item: model.Listing{Title: "Tab A9+ za delove", Description: "ne radi"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "a9+"},
				{Kind: model.FilterExclude, Scope: model.ScopeAll, Value: "za delove"},
			},
			want: false,
		},
		{
			name: "exclude listed after include still wins",
			item: model.Listing{Title: "Tab A9+", Description: "za delove"},
			filters: []model.Filter{
				{Kind: model.FilterIncludeRe, Scope: model.ScopeAll, Value: `a9\s*\+`},
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "tab"},
				{Kind: model.FilterExcludeRe, Scope: model.ScopeAll, Value: "delov"},
			},
			want: false,
		},
		{
			name: "multiple includes OR logic: second matches",
			item: model.Listing{Title: "Tab A9 plus"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "a9+"},
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "a9 plus"},
			},
			want: true,
		},
		{
			name: "regex include matches resolution",
			item: model.Listing{Title: "TV", Description: "rezolucija 3840 × 2160"},
			filters: []model.Filter{
				{Kind: model.FilterIncludeRe, Scope: model.ScopeAll, Value: `3840\s*[x×]\s*2160`},
			},
			want: true,
		},
		{
			name: "invalid regex in filter is skipped (no match)",
			item: model.Listing{Title: "anything"},
			filters: []model.Filter{
				{Kind: model.FilterIncludeRe, Scope: model.ScopeAll, Value: "[invalid"},
			},
			want: false,
		},
		{
			name: "unicode include",
			item: model.Listing{Title: "Televizor ČIST", Description: "Уредан"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "уредан"},
			},
			want: true,
		},
		{
			name: "scope title: word only in description does not match",
			item: model.Listing{Title: "Televizor", Description: "55 inca"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeTitle, Value: "55"},
			},
			want: false,
		},
		{
			name: "scope content: word in description matches",
			item: model.Listing{Title: "Televizor", Description: "55 inca"},
			filters: []model.Filter{
				{Kind: model.FilterInclude, Scope: model.ScopeContent, Value: "55"},
			},
			want: true,
		},
		{
			name: "exclude scope content: word in title is not excluded",
			item: model.Listing{Title: "Zamena za S21", Description: "odlican telefon"},
			filters: []model.Filter{
				{Kind: model.FilterExclude, Scope: model.ScopeContent, Value: "zamena"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.item, tt.filters)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply(t *testing.T) {
	fresh := func(title, desc string) model.Listing {
		return model.Listing{Title: title, Description: desc, Nonrenewed: true, RecentEnough: true}
	}
	tvFilters := []model.Filter{
		{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "55"},
		{Kind: model.FilterInclude, Scope: model.ScopeAll, Value: "4k"},
		{Kind: model.FilterExclude, Scope: model.ScopeAll, Value: "ostecen"},
	}

	tests := []struct {
		name       string
		listings   []model.Listing
		filters    []model.Filter
		wantTitles []string
	}{
		{
			name: "renewed listings are dropped",
			listings: []model.Listing{
				{Title: "bumped", Nonrenewed: false, RecentEnough: true},
				fresh("new", ""),
			},
			wantTitles: []string{"new"},
		},
		{
			name: "stale listings are dropped",
			listings: []model.Listing{
				{Title: "old", Nonrenewed: true, RecentEnough: false},
				fresh("today", ""),
			},
			wantTitles: []string{"today"},
		},
		{
			name: "match all keeps every fresh listing in order",
			listings: []model.Listing{
				fresh("c", ""), fresh("a", ""), fresh("b", ""),
			},
			wantTitles: []string{"c", "a", "b"},
		},
		{
			name: "include set with exclusion precedence",
			listings: []model.Listing{
				fresh("Samsung 55", "ostecen panel"),
				fresh("LG 4K", "ispravan"),
				fresh("Philips 32", "ispravan"),
				fresh("Sony 55", "odlican"),
			},
			filters:    tvFilters,
			wantTitles: []string{"LG 4K", "Sony 55"},
		},
		{
			name:       "empty input",
			listings:   nil,
			filters:    tvFilters,
			wantTitles: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, l := range Apply(tt.listings, tt.filters) {
				got = append(got, l.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, got); diff != "" {
				t.Errorf("Apply() titles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRegex(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "valid simple", pattern: "hello", wantErr: false},
		{name: "valid resolution", pattern: `3840\s*[x×]\s*2160`, wantErr: false},
		{name: "invalid unclosed bracket", pattern: "[invalid", wantErr: true},
		{name: "invalid bad repetition", pattern: "*bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegex(tt.pattern)
			gotErr := err != nil
			if diff := cmp.Diff(tt.wantErr, gotErr); diff != "" {
				t.Errorf("ValidateRegex() error mismatch (-want +got):\n%s\nerr: %v", diff, err)
			}
		})
	}
}
