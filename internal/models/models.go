// package models defines the data model shared by the catalog adapters and the transfer pipeline
package models

import (
	"fmt"
	"strings"
	"time"
)

// ProviderID identifies a streaming provider. The values are the keys persisted for source and target selection.
type ProviderID string

const (
	Spotify ProviderID = "spotify"
	Google  ProviderID = "google"
	Apple   ProviderID = "apple"
)

// ParseProviderID validates s as a known provider id.
func ParseProviderID(s string) (ProviderID, error) {
	switch id := ProviderID(strings.ToLower(strings.TrimSpace(s))); id {
	case Spotify, Google, Apple:
		return id, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

func (p ProviderID) String() string { return string(p) }

// Track is one song as seen by one provider. ID is only meaningful to that provider.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// PrimaryArtist returns the first listed artist or an empty string.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Query builds the free-text search query for t: name followed by the primary artist.
func (t Track) Query() string {
	return strings.TrimSpace(t.Name + " " + t.PrimaryArtist())
}

func (t Track) String() string {
	if artist := t.PrimaryArtist(); artist != "" {
		return artist + " - " + t.Name
	}
	return t.Name
}

// Playlist describes a provider playlist. Description and Link may be empty and
// TrackCount is zero when the provider does not report it.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image"`
	Link        string `json:"link,omitempty"`
	TrackCount  int    `json:"trackCount,omitempty"`
}

// Profile is the signed-in user of a provider.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// TransferStatus is the persisted outcome of a transfer job.
type TransferStatus string

const (
	TransferRunning TransferStatus = "running"
	TransferDone    TransferStatus = "done"
	TransferFailed  TransferStatus = "failed"
	TransferSkipped TransferStatus = "skipped"
)

// TransferRecord is the bookkeeping row kept for each transfer job.
type TransferRecord struct {
	ID                 string         `json:"id"`
	Sequence           int            `json:"-"`
	SourceService      ProviderID     `json:"sourceService"`
	SourcePlaylistID   string         `json:"sourcePlaylistId"`
	SourcePlaylistName string         `json:"sourcePlaylistName"`
	TargetService      ProviderID     `json:"targetService"`
	TargetPlaylistID   string         `json:"targetPlaylistId,omitempty"`
	Status             TransferStatus `json:"status"`
	Attempts           int            `json:"attempts"`
	TracksTotal        int            `json:"tracksTotal"`
	TracksResolved     int            `json:"tracksResolved"`
	TracksAdded        int            `json:"tracksAdded"`
	TracksExisting     int            `json:"tracksExisting"`
	ErrorMessage       string         `json:"errorMessage,omitempty"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Validate checks the fields required to persist r.
func (r *TransferRecord) Validate() error {
	switch {
	case r.SourceService == "":
		return fmt.Errorf("source service is required")
	case r.TargetService == "":
		return fmt.Errorf("target service is required")
	case r.SourcePlaylistID == "":
		return fmt.Errorf("source playlist id is required")
	case r.Status == "":
		return fmt.Errorf("status is required")
	}
	return nil
}

// Transferred is the number of resolved tracks present in the target playlist after the job.
func (r *TransferRecord) Transferred() int {
	return r.TracksAdded + r.TracksExisting
}
