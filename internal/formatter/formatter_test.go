package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/matching"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	th "github.com/desertthunder/mixtape/internal/testing"
)

func roadTripSummary() *tasks.Summary {
	heyJude := models.Track{ID: "s1", Name: "Hey Jude", Artists: []string{"The Beatles"}}
	bootleg := models.Track{ID: "s2", Name: "Unreleased Demo", Artists: []string{"Nobody"}}
	wonderwall := models.Track{ID: "s3", Name: "Wonderwall", Artists: []string{"Oasis"}}

	done := &tasks.Job{
		ID:               "job-1",
		Playlist:         models.Playlist{ID: "pl1", Name: "Road Trip"},
		Source:           models.Spotify,
		Target:           models.Google,
		TargetPlaylistID: "yt-new",
		Created:          true,
		SourceTracks:     []models.Track{heyJude, bootleg, wonderwall},
		TargetTrackIDs:   []string{"hj1", "ww1"},
		Matches: []tasks.Match{
			{Source: heyJude, Result: matching.Result{
				Track: models.Track{ID: "hj1", Name: "Hey Jude (Remastered 2015)", Artists: []string{"The Beatles"}},
				Score: 0.91, Confidence: matching.ConfidenceMedium, Matched: true,
			}},
			{Source: wonderwall, Result: matching.Result{
				Track: models.Track{ID: "ww1", Name: "Wonderwall", Artists: []string{"Oasis"}},
				Score: 1, Confidence: matching.ConfidenceHigh, Matched: true,
			}},
		},
		Unmatched: []models.Track{bootleg},
		Inserted:  tasks.InsertResult{Requested: 2, Added: 2},
		Stage:     tasks.Done,
		Attempts:  1,
	}
	skipped := &tasks.Job{
		ID:        "job-2",
		Playlist:  models.Playlist{ID: "pl2", Name: "Gym | Mix"},
		Source:    models.Spotify,
		Target:    models.Google,
		Stage:     tasks.Error,
		LastError: errors.New("rate limited"),
		Attempts:  2,
		Skipped:   true,
	}
	return &tasks.Summary{Source: models.Spotify, Target: models.Google, Jobs: []*tasks.Job{done, skipped}}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", Text},
		{"txt", Text},
		{".md", Markdown},
		{"Markdown", Markdown},
		{"csv", CSV},
		{".json", JSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag for xml, got %v", err)
	}
	if f := FormatForPath("out/report.xml"); f != Text {
		t.Errorf("expected unknown extension to fall back to text, got %s", f)
	}
}

func TestNewReport(t *testing.T) {
	r := NewReport(roadTripSummary(), "Spotify", "YouTube")

	if len(r.Playlists) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(r.Playlists))
	}

	p := r.Playlists[0]
	if p.Status != "done" || p.Summary != "2 of 3 tracks transferred" {
		t.Errorf("unexpected first playlist %+v", p)
	}
	if len(p.Tracks) != 3 {
		t.Fatalf("expected a row per source track, got %d", len(p.Tracks))
	}
	if !p.Tracks[0].Matched || p.Tracks[0].TargetID != "hj1" || p.Tracks[0].Confidence != "medium" {
		t.Errorf("unexpected first row %+v", p.Tracks[0])
	}
	if p.Tracks[1].Matched {
		t.Errorf("expected second row unmatched, got %+v", p.Tracks[1])
	}
	if p.Tracks[2].TargetID != "ww1" {
		t.Errorf("expected rows in source order, got %+v", p.Tracks[2])
	}

	s := r.Playlists[1]
	if s.Status != "skipped" || s.Error != "rate limited" || s.Attempts != 2 {
		t.Errorf("unexpected skipped playlist %+v", s)
	}
}

func TestRenderers(t *testing.T) {
	r := NewReport(roadTripSummary(), "Spotify", "YouTube")

	t.Run("ToText", func(t *testing.T) {
		output := string(ToText(r))

		for _, want := range []string{
			"Transfer: Spotify -> YouTube",
			"1. Road Trip [done] 2 of 3 tracks transferred",
			"not found: Nobody - Unreleased Demo",
			"2. Gym | Mix [skipped]",
			"error: rate limited",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		output := string(ToMarkdown(r))

		if !strings.Contains(output, "# Transfer: Spotify to YouTube") {
			t.Errorf("markdown missing title")
		}
		if !strings.Contains(output, "## Road Trip") {
			t.Errorf("markdown missing playlist section")
		}
		if !strings.Contains(output, "| 1 | The Beatles - Hey Jude | The Beatles - Hey Jude (Remastered 2015) | 0.91 (medium) |") {
			t.Errorf("markdown missing matched row, got: %s", output)
		}
		if !strings.Contains(output, "| 2 | Nobody - Unreleased Demo | not found |  |") {
			t.Errorf("markdown missing unmatched row, got: %s", output)
		}
	})

	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(r)
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")

		if lines[0] != "Playlist,Track,Artist,Matched,Target ID,Target,Score,Confidence" {
			t.Errorf("CSV missing headers, got: %s", lines[0])
		}
		if len(lines) != 4 {
			t.Fatalf("expected header plus 3 rows, got %d", len(lines))
		}
		if lines[1] != "Road Trip,Hey Jude,The Beatles,true,hj1,The Beatles - Hey Jude (Remastered 2015),0.910,medium" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if lines[2] != "Road Trip,Unreleased Demo,Nobody,false,,,," {
			t.Errorf("unexpected unmatched row: %s", lines[2])
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(r)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		var decoded Report
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		if decoded.Source != "Spotify" || len(decoded.Playlists) != 2 {
			t.Errorf("unexpected decoded report %+v", decoded)
		}
		if !strings.Contains(string(data), `"targetPlaylistId": "yt-new"`) {
			t.Errorf("JSON missing target playlist id")
		}
	})
}

func TestWriteReport(t *testing.T) {
	r := NewReport(roadTripSummary(), "Spotify", "YouTube")
	dir := t.TempDir()

	t.Run("Format From Extension", func(t *testing.T) {
		path := filepath.Join(dir, "reports", "road-trip.csv")
		if err := WriteReport(r, path); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		th.RequireFile(t, path)

		content := th.ReadFile(t, path)
		if !strings.HasPrefix(content, "Playlist,Track") {
			t.Errorf("expected CSV content, got: %s", content)
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		path := filepath.Join(dir, "road-trip.md")
		if err := WriteReport(r, path); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if content := th.ReadFile(t, path); !strings.HasPrefix(content, "# Transfer") {
			t.Errorf("expected markdown content, got: %s", content)
		}
	})

	t.Run("Unwritable Path", func(t *testing.T) {
		blocker := filepath.Join(dir, "road-trip.md")
		if err := WriteReport(r, filepath.Join(blocker, "nested.txt")); err == nil {
			t.Error("expected error writing beneath a file")
		}
	})
}

func TestHistory(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*models.TransferRecord{
		{
			SourceService:      models.Spotify,
			SourcePlaylistName: "Road Trip",
			TargetService:      models.Google,
			Status:             models.TransferDone,
			Attempts:           1,
			TracksTotal:        3,
			TracksAdded:        1,
			TracksExisting:     1,
			CreatedAt:          created,
		},
	}

	t.Run("Table", func(t *testing.T) {
		output := string(HistoryTable(records))
		if !strings.Contains(output, "PLAYLIST") {
			t.Errorf("table missing header, got: %s", output)
		}
		if !strings.Contains(output, "spotify -> google") || !strings.Contains(output, "2 of 3") {
			t.Errorf("table missing row, got: %s", output)
		}
	})

	t.Run("Empty Table", func(t *testing.T) {
		if output := string(HistoryTable(nil)); output != "No transfers recorded\n" {
			t.Errorf("unexpected empty output %q", output)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := HistoryJSON(nil)
		if err != nil {
			t.Fatalf("HistoryJSON failed: %v", err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("expected empty array, got %s", data)
		}

		data, err = HistoryJSON(records)
		if err != nil {
			t.Fatalf("HistoryJSON failed: %v", err)
		}
		if !strings.Contains(string(data), `"sourcePlaylistName": "Road Trip"`) {
			t.Errorf("JSON missing playlist name, got %s", data)
		}
	})
}
