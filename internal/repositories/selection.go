package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const (
	sourceKey    = "sourceServiceId"
	targetKey    = "targetServiceId"
	playlistsKey = "selectedPlaylistIds"
)

// Selection is the persisted choice of providers and source playlists.
type Selection struct {
	Source      models.ProviderID `json:"source"`
	Target      models.ProviderID `json:"target"`
	PlaylistIDs []string          `json:"playlistIds"`
}

// Ready reports whether a transfer can start from s.
func (s Selection) Ready() bool {
	return s.Source != "" && s.Target != "" && len(s.PlaylistIDs) > 0
}

// SelectionRepository reads and writes the [Selection] through a [Store].
type SelectionRepository struct {
	store Store
}

// NewSelectionRepository creates a SelectionRepository backed by store.
func NewSelectionRepository(store Store) *SelectionRepository {
	return &SelectionRepository{store: store}
}

// Load returns the current selection. Unset keys leave their fields empty.
func (r *SelectionRepository) Load(ctx context.Context) (Selection, error) {
	var sel Selection

	source, err := r.get(ctx, sourceKey)
	if err != nil {
		return sel, err
	}
	target, err := r.get(ctx, targetKey)
	if err != nil {
		return sel, err
	}
	sel.Source = models.ProviderID(source)
	sel.Target = models.ProviderID(target)

	raw, err := r.get(ctx, playlistsKey)
	if err != nil {
		return sel, err
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &sel.PlaylistIDs); err != nil {
			return sel, fmt.Errorf("failed to decode %s: %w", playlistsKey, err)
		}
	}
	return sel, nil
}

// SetSource stores the source provider.
//
// Playlist ids are provider-local, so changing the source clears the selected playlists.
func (r *SelectionRepository) SetSource(ctx context.Context, p models.ProviderID) error {
	if p == "" {
		return fmt.Errorf("%w: empty provider", shared.ErrInvalidArgument)
	}
	sel, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if p == sel.Target {
		return fmt.Errorf("%w: source and target must differ (%s)", shared.ErrInvalidArgument, p)
	}
	if sel.Source != p {
		if err := r.store.Delete(ctx, playlistsKey); err != nil {
			return err
		}
	}
	return r.store.Set(ctx, sourceKey, string(p))
}

// SetTarget stores the target provider.
func (r *SelectionRepository) SetTarget(ctx context.Context, p models.ProviderID) error {
	if p == "" {
		return fmt.Errorf("%w: empty provider", shared.ErrInvalidArgument)
	}
	sel, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if p == sel.Source {
		return fmt.Errorf("%w: source and target must differ (%s)", shared.ErrInvalidArgument, p)
	}
	return r.store.Set(ctx, targetKey, string(p))
}

// SetPlaylists replaces the selected playlist ids, dropping duplicates and keeping order.
func (r *SelectionRepository) SetPlaylists(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	data, err := json.Marshal(unique)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", playlistsKey, err)
	}
	return r.store.Set(ctx, playlistsKey, string(data))
}

// Clear removes every selection key.
func (r *SelectionRepository) Clear(ctx context.Context) error {
	for _, key := range []string{sourceKey, targetKey, playlistsKey} {
		if err := r.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *SelectionRepository) get(ctx context.Context, key string) (string, error) {
	v, err := r.store.Get(ctx, key)
	if errors.Is(err, shared.ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}
