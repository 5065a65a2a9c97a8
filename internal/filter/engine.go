// Package filter implements the listing matching engine.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"kpwatch/internal/model"
)

// Apply returns the listings that are candidates for alerting, in input order.
// Only freshly posted, recently dated listings are considered; the remaining
// ones must then pass the filter rules.
func Apply(listings []model.Listing, filters []model.Filter) []model.Listing {
	var out []model.Listing
	for _, l := range listings {
		if !l.Nonrenewed || !l.RecentEnough {
			continue
		}
		if Match(l, filters) {
			out = append(out, l)
		}
	}
	return out
}

// Match checks whether a listing passes the given set of filters.
// If no filters are provided, the listing always passes.
// Include filters use OR logic (at least one must match).
// Exclude filters use AND logic (none must match) and win over includes.
func Match(item model.Listing, filters []model.Filter) bool {
	if len(filters) == 0 {
		return true
	}

	for _, f := range filters {
		if isExclude(f.Kind) && matchesFilter(item, f) {
			return false
		}
	}

	hasIncludes := false
	for _, f := range filters {
		if !isInclude(f.Kind) {
			continue
		}
		hasIncludes = true
		if matchesFilter(item, f) {
			return true
		}
	}
	return !hasIncludes
}

func isInclude(k model.FilterKind) bool {
	return k == model.FilterInclude || k == model.FilterIncludeRe
}

func isExclude(k model.FilterKind) bool {
	return k == model.FilterExclude || k == model.FilterExcludeRe
}

func matchesFilter(item model.Listing, f model.Filter) bool {
	text := textForScope(item, f.Scope)
	switch f.Kind {
	case model.FilterInclude, model.FilterExclude:
		return strings.Contains(text, strings.ToLower(f.Value))
	case model.FilterIncludeRe, model.FilterExcludeRe:
		re, err := regexp.Compile("(?i)" + f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

func textForScope(item model.Listing, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return strings.ToLower(item.Title)
	case model.ScopeContent:
		return strings.ToLower(item.Description)
	default:
		return strings.ToLower(item.Title + " " + item.Description)
	}
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
