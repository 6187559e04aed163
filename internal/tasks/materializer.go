package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
)

// DefaultDescription is used for created playlists whose source has no description.
const DefaultDescription = "Created by mixtape"

// Materializer finds or creates the target playlist for a source playlist.
type Materializer struct {
	target services.Service
	logger *log.Logger
}

// NewMaterializer creates a Materializer for target.
func NewMaterializer(target services.Service, logger *log.Logger) *Materializer {
	return &Materializer{target: target, logger: logger}
}

// Materialize returns the id of the first target playlist whose name equals source.Name exactly,
// creating one when none exists. created reports whether a playlist was created.
func (m *Materializer) Materialize(ctx context.Context, source models.Playlist) (id string, created bool, err error) {
	playlists, err := m.target.ListPlaylists(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list target playlists: %w", err)
	}

	for _, pl := range playlists {
		if pl.Name == source.Name {
			m.logger.Debug("reusing playlist", "name", pl.Name, "id", pl.ID)
			return pl.ID, false, nil
		}
	}

	description := source.Description
	if description == "" {
		description = DefaultDescription
	}

	id, err = m.target.CreatePlaylist(ctx, models.Playlist{Name: source.Name, Description: description})
	if err != nil {
		return "", false, fmt.Errorf("create playlist %q: %w", source.Name, err)
	}
	m.logger.Info("created playlist", "name", source.Name, "id", id)
	return id, true, nil
}
