package dedup

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"kpwatch/internal/model"
)

func ad(slug, id string) model.Listing {
	return model.Listing{
		Title:        slug,
		Link:         "https://www.kupujemprodajem.com/tv/" + slug + "/oglas/" + id,
		Nonrenewed:   true,
		RecentEnough: true,
	}
}

func titles(ls []model.Listing) []string {
	var out []string
	for _, l := range ls {
		out = append(out, l.Title)
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		candidates []model.Listing
		registry   []string
		wantNew    []string
		wantIDs    []string
	}{
		{
			name:       "empty registry marks all new, newest inserted first",
			candidates: []model.Listing{ad("x1", "1"), ad("x2", "2")},
			wantNew:    []string{"x1", "x2"},
			wantIDs:    []string{"x2/2", "x1/1"},
		},
		{
			name:       "known listing is not new and does not move",
			candidates: []model.Listing{ad("x1", "1"), ad("x2", "2")},
			registry:   []string{"x0/0", "x1/1"},
			wantNew:    []string{"x2"},
			wantIDs:    []string{"x2/2", "x0/0", "x1/1"},
		},
		{
			name:       "duplicate identity in one batch alerts once",
			candidates: []model.Listing{ad("x1", "1"), ad("x1", "1")},
			wantNew:    []string{"x1"},
			wantIDs:    []string{"x1/1"},
		},
		{
			name: "same ad under different query strings alerts once",
			candidates: []model.Listing{
				{Title: "a", Link: "https://kp.rs/tv/lg/oglas/5?page=1"},
				{Title: "b", Link: "https://kp.rs/tv/lg/oglas/5?page=2"},
			},
			wantNew: []string{"a"},
			wantIDs: []string{"lg/5"},
		},
		{
			name:     "no candidates keeps registry",
			registry: []string{"x1/1"},
			wantIDs:  []string{"x1/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(tt.registry, DefaultEviction)
			fresh, updated := Classify(tt.candidates, reg)
			if diff := cmp.Diff(tt.wantNew, titles(fresh)); diff != "" {
				t.Errorf("new listings mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantIDs, updated.IDs()); diff != "" {
				t.Errorf("registry mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyIsIdempotentWithoutPersisting(t *testing.T) {
	reg := NewRegistry([]string{"x1/1"}, DefaultEviction)
	candidates := []model.Listing{ad("x1", "1"), ad("x2", "2"), ad("x3", "3")}

	first, firstReg := Classify(candidates, reg)
	second, secondReg := Classify(candidates, reg)

	if diff := cmp.Diff(titles(first), titles(second)); diff != "" {
		t.Errorf("new sets differ between calls (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstReg.IDs(), secondReg.IDs()); diff != "" {
		t.Errorf("registries differ between calls (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x1/1"}, reg.IDs()); diff != "" {
		t.Errorf("input registry mutated (-want +got):\n%s", diff)
	}
}

func TestClassifyEvictionReAlerts(t *testing.T) {
	policy := Eviction{Threshold: 4, Keep: 2}
	reg := NewRegistry(nil, policy)

	_, reg = Classify([]model.Listing{ad("a", "1"), ad("b", "2"), ad("c", "3")}, reg)
	if diff := cmp.Diff(3, reg.Len()); diff != "" {
		t.Fatalf("registry below threshold should keep all (-want +got):\n%s", diff)
	}

	_, reg = Classify([]model.Listing{ad("d", "4")}, reg)
	if diff := cmp.Diff([]string{"d/4", "c/3"}, reg.IDs()); diff != "" {
		t.Fatalf("registry not truncated to newest keep entries (-want +got):\n%s", diff)
	}

	fresh, reg := Classify([]model.Listing{ad("a", "1"), ad("d", "4")}, reg)
	if diff := cmp.Diff([]string{"a"}, titles(fresh)); diff != "" {
		t.Errorf("evicted identity should be new again (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a/1", "d/4", "c/3"}, reg.IDs()); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyEachTrimsOnceAfterAllBatches(t *testing.T) {
	reg := NewRegistry(nil, Eviction{Threshold: 3, Keep: 1})
	batches := [][]model.Listing{
		{ad("x", "1"), ad("y", "2"), ad("z", "3")},
		{ad("x", "1"), ad("w", "4")},
	}

	fresh, updated := ClassifyEach(batches, reg)

	got := [][]string{titles(fresh[0]), titles(fresh[1])}
	want := [][]string{{"x", "y", "z"}, {"w"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("new listings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"w/4"}, updated.IDs()); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(0, reg.Len()); diff != "" {
		t.Errorf("input registry mutated (-want +got):\n%s", diff)
	}
}
