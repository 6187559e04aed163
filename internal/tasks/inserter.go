package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/services"
)

// InsertResult counts the outcome of an insertion.
type InsertResult struct {
	Requested int // Distinct resolved ids
	Existing  int // Already present in the target playlist
	Added     int // Added by this run
}

// Inserter adds only the tracks missing from a target playlist.
type Inserter struct {
	target services.Service
	logger *log.Logger
}

// NewInserter creates an Inserter for target.
func NewInserter(target services.Service, logger *log.Logger) *Inserter {
	return &Inserter{target: target, logger: logger}
}

// Existing returns the ids currently in the target playlist.
func (i *Inserter) Existing(ctx context.Context, playlistID string) ([]string, error) {
	tracks, err := i.target.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list target tracks: %w", err)
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// Insert adds every id of resolved that is not in existing.
//
// Order of resolved is kept and repeated ids are collapsed. When nothing is missing no call is made.
// On a batch failure the returned result still counts the batches that were added.
func (i *Inserter) Insert(ctx context.Context, playlistID string, resolved, existing []string, progress chan<- ProgressUpdate) (InsertResult, error) {
	toAdd, requested := Missing(resolved, existing)
	result := InsertResult{Requested: requested, Existing: requested - len(toAdd)}

	if len(toAdd) == 0 {
		sendProgress(progress, allExistUpdate(requested))
		return result, nil
	}

	sendProgress(progress, addingUpdate(result.Existing, 0, len(toAdd)))
	_, err := i.target.AddTracksToPlaylist(ctx, playlistID, toAdd, func(added int) {
		result.Added = added
		sendProgress(progress, addingUpdate(result.Existing, added, len(toAdd)))
	})
	if err != nil {
		return result, fmt.Errorf("add tracks: %w", err)
	}
	result.Added = len(toAdd)
	return result, nil
}

// Missing returns the ids of resolved absent from existing, in order and without repeats,
// along with the number of distinct ids in resolved.
func Missing(resolved, existing []string) (toAdd []string, distinct int) {
	present := make(map[string]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}

	seen := make(map[string]bool, len(resolved))
	toAdd = make([]string, 0, len(resolved))
	for _, id := range resolved {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !present[id] {
			toAdd = append(toAdd, id)
		}
	}
	return toAdd, len(seen)
}
