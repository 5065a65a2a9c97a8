// Package dedup decides which listings are new against a bounded memory of
// previously announced listing identities.
package dedup

import "fmt"

// Eviction bounds the registry: once it holds Threshold or more identities
// it is truncated to the Keep newest ones.
type Eviction struct {
	Threshold int
	Keep      int
}

// DefaultEviction is used when no policy is configured.
var DefaultEviction = Eviction{Threshold: 1000, Keep: 800}

// Validate checks that 0 < Keep < Threshold.
func (e Eviction) Validate() error {
	if e.Keep <= 0 || e.Keep >= e.Threshold {
		return fmt.Errorf("eviction keep %d must be positive and below threshold %d", e.Keep, e.Threshold)
	}
	return nil
}

// Registry is an ordered, duplicate-free list of identities, newest first.
// It is not safe for concurrent use.
type Registry struct {
	ids    []string
	index  map[string]struct{}
	policy Eviction
}

// NewRegistry builds a registry from persisted identities. Duplicates keep
// their first (newest) position.
func NewRegistry(ids []string, policy Eviction) *Registry {
	r := &Registry{
		ids:    make([]string, 0, len(ids)),
		index:  make(map[string]struct{}, len(ids)),
		policy: policy,
	}
	for _, id := range ids {
		if _, ok := r.index[id]; ok {
			continue
		}
		r.index[id] = struct{}{}
		r.ids = append(r.ids, id)
	}
	return r
}

// Contains reports whether id has been announced.
func (r *Registry) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Add inserts id at the front. It returns false if id was already present,
// in which case the order is left untouched.
func (r *Registry) Add(id string) bool {
	if r.Contains(id) {
		return false
	}
	r.ids = append(r.ids, "")
	copy(r.ids[1:], r.ids)
	r.ids[0] = id
	r.index[id] = struct{}{}
	return true
}

// Trim applies the eviction policy and returns the number of evicted
// identities.
func (r *Registry) Trim() int {
	if r.policy.Threshold <= 0 || len(r.ids) < r.policy.Threshold {
		return 0
	}
	keep := r.policy.Keep
	if keep < 0 {
		keep = 0
	}
	if keep > len(r.ids) {
		keep = len(r.ids)
	}
	evicted := r.ids[keep:]
	for _, id := range evicted {
		delete(r.index, id)
	}
	n := len(evicted)
	r.ids = r.ids[:keep:keep]
	return n
}

// Len returns the number of identities held.
func (r *Registry) Len() int { return len(r.ids) }

// IDs returns a copy of the identities, newest first.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	return NewRegistry(r.ids, r.policy)
}
