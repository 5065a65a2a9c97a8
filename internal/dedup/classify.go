package dedup

import "kpwatch/internal/model"

// Classify partitions candidates into new listings and returns the registry
// that results from announcing them. The given registry is not modified, so
// classifying the same inputs again yields the same result.
//
// A listing is new when its identity is absent from the registry, including
// identities inserted earlier in the same call. Known listings do not move.
// The eviction policy is applied once after the whole batch.
func Classify(candidates []model.Listing, registry *Registry) ([]model.Listing, *Registry) {
	fresh, updated := ClassifyEach([][]model.Listing{candidates}, registry)
	return fresh[0], updated
}

// ClassifyEach classifies several batches against one registry as a single
// run. Identities announced by an earlier batch are known to later ones, and
// eviction only happens after the last batch, so a run never announces the
// same identity twice.
func ClassifyEach(batches [][]model.Listing, registry *Registry) ([][]model.Listing, *Registry) {
	updated := registry.Clone()
	fresh := make([][]model.Listing, len(batches))
	for i, candidates := range batches {
		for _, l := range candidates {
			if updated.Add(Identity(l.Link)) {
				fresh[i] = append(fresh[i], l)
			}
		}
	}
	updated.Trim()
	return fresh, updated
}
