package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mixtape/internal/models"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.Playlist] to implement [list.Item] with a selection mark.
type playlistItem struct {
	playlist models.Playlist
	selected bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string {
	if i.selected {
		return "[x] " + i.playlist.Name
	}
	return "[ ] " + i.playlist.Name
}
func (i playlistItem) Description() string {
	desc := "unknown length"
	if i.playlist.TrackCount > 0 {
		desc = fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	}
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// selectedPlaylists returns the toggled items in list order.
func selectedPlaylists(items []list.Item) []models.Playlist {
	var out []models.Playlist
	for _, it := range items {
		if pl, ok := it.(playlistItem); ok && pl.selected {
			out = append(out, pl.playlist)
		}
	}
	return out
}
