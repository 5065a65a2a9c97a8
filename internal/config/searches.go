package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kpwatch/internal/filter"
	"kpwatch/internal/model"
)

type searchesFile struct {
	Searches []searchEntry `yaml:"searches" validate:"required,min=1,dive"`
}

type searchEntry struct {
	Name      string        `yaml:"name"`
	URL       string        `yaml:"url" validate:"required,url"`
	Source    string        `yaml:"source" validate:"omitempty,oneof=html rss"`
	Include   []string      `yaml:"include" validate:"dive,required"`
	IncludeRe []string      `yaml:"include_re" validate:"dive,required"`
	Exclude   []string      `yaml:"exclude" validate:"dive,required"`
	ExcludeRe []string      `yaml:"exclude_re" validate:"dive,required"`
	Filters   []filterEntry `yaml:"filters" validate:"dive"`
}

type filterEntry struct {
	Kind  string `yaml:"kind" validate:"required,oneof=include exclude include_re exclude_re"`
	Scope string `yaml:"scope" validate:"omitempty,oneof=title content all"`
	Value string `yaml:"value" validate:"required"`
}

// LoadSearches reads and validates the searches file at path.
func LoadSearches(path string) ([]model.Search, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("read searches file: %w", err)
	}
	return ParseSearches(data)
}

// ParseSearches decodes and validates searches from YAML.
func ParseSearches(data []byte) ([]model.Search, error) {
	var doc searchesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode searches: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid searches: %w", err)
	}

	searches := make([]model.Search, 0, len(doc.Searches))
	ids := make(map[string]int, len(doc.Searches))
	for i, e := range doc.Searches {
		s, err := e.toSearch()
		if err != nil {
			return nil, fmt.Errorf("search %d: %w", i+1, err)
		}
		if prev, ok := ids[s.ID()]; ok {
			return nil, fmt.Errorf("search %d: duplicate id %q (also search %d)", i+1, s.ID(), prev)
		}
		ids[s.ID()] = i + 1
		searches = append(searches, s)
	}
	return searches, nil
}

func (e searchEntry) toSearch() (model.Search, error) {
	u, err := url.Parse(e.URL)
	if err != nil || !u.IsAbs() {
		return model.Search{}, fmt.Errorf("url %q must be absolute", e.URL)
	}

	source := model.SourceHTML
	if e.Source != "" {
		source = model.SourceKind(e.Source)
	}

	var filters []model.Filter
	add := func(kind model.FilterKind, values []string) {
		for _, v := range values {
			filters = append(filters, model.Filter{Kind: kind, Scope: model.ScopeAll, Value: v})
		}
	}
	add(model.FilterInclude, e.Include)
	add(model.FilterIncludeRe, e.IncludeRe)
	add(model.FilterExclude, e.Exclude)
	add(model.FilterExcludeRe, e.ExcludeRe)
	for _, f := range e.Filters {
		scope := model.ScopeAll
		if f.Scope != "" {
			scope = model.FilterScope(f.Scope)
		}
		filters = append(filters, model.Filter{Kind: model.FilterKind(f.Kind), Scope: scope, Value: f.Value})
	}

	for _, f := range filters {
		if f.Kind != model.FilterIncludeRe && f.Kind != model.FilterExcludeRe {
			continue
		}
		if err := filter.ValidateRegex(f.Value); err != nil {
			return model.Search{}, fmt.Errorf("filter %q: %w", f.Value, err)
		}
	}

	return model.Search{
		Name:    e.Name,
		URL:     e.URL,
		Source:  source,
		Filters: filters,
	}, nil
}
