// Package storage holds the versioned state stores and the local mirror.
package storage

import (
	"context"
	"errors"

	"kpwatch/internal/model"
)

// ErrConflict is returned by Save when the stored version no longer matches
// the version the new state was derived from.
var ErrConflict = errors.New("state version conflict")

// Store is a versioned store of the run state.
type Store interface {
	// Load returns the latest committed state.
	Load(ctx context.Context) (model.State, error)
	// Save commits st if the stored version still equals st.Version and
	// returns the committed state with its new version.
	Save(ctx context.Context, st model.State) (model.State, error)
	Close() error
}

type snapshotRow struct {
	searchID string
	position int
	link     string
}

func snapshotRows(snapshots map[string][]string) []snapshotRow {
	var rows []snapshotRow
	for id, links := range snapshots {
		for i, link := range links {
			rows = append(rows, snapshotRow{searchID: id, position: i, link: link})
		}
	}
	return rows
}
