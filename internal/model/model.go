// Package model defines the domain types used across the application.
package model

import (
	"net/url"
	"regexp"
)

// Listing is one classifieds advertisement as displayed by a search result page.
type Listing struct {
	Title        string
	Description  string
	Price        string
	Link         string
	Nonrenewed   bool
	RecentEnough bool
}

// SourceKind selects how a search page is parsed.
type SourceKind string

// Supported source kinds.
const (
	SourceHTML SourceKind = "html"
	SourceRSS  SourceKind = "rss"
)

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of a listing a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter represents a single filtering rule attached to a search.
type Filter struct {
	Kind  FilterKind
	Scope FilterScope
	Value string
}

// Search is one configured classifieds search. It is immutable after start-up.
type Search struct {
	Name    string
	URL     string
	Source  SourceKind
	Filters []Filter
}

var nonSlugChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ID returns the stable key of the search: its name, or a slug of the URL
// path and query when no name is configured.
func (s Search) ID() string {
	if s.Name != "" {
		return s.Name
	}
	raw := s.URL
	if u, err := url.Parse(s.URL); err == nil {
		raw = u.Path + u.RawQuery
	}
	slug := nonSlugChars.ReplaceAllString(raw, "_")
	if len(slug) > 120 {
		slug = slug[:120]
	}
	return slug
}

// MatchAll reports whether the search keeps every fresh listing that is
// not excluded.
func (s Search) MatchAll() bool {
	for _, f := range s.Filters {
		if f.Kind == FilterInclude || f.Kind == FilterIncludeRe {
			return false
		}
	}
	return true
}

// State is the persisted memory of a run: the shared seen registry
// (newest first) and the last visible links of every search.
type State struct {
	Version   int64
	Seen      []string
	Snapshots map[string][]string
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Version:   s.Version,
		Seen:      append([]string(nil), s.Seen...),
		Snapshots: make(map[string][]string, len(s.Snapshots)),
	}
	for k, v := range s.Snapshots {
		out.Snapshots[k] = append([]string(nil), v...)
	}
	return out
}
